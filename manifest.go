package logocluster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	columnDomain    = "domain"
	columnLocalPath = "local_path"
)

// ManifestStats counts manifest rows read and rows skipped as malformed.
type ManifestStats struct {
	Rows    int `json:"rows"`
	Skipped int `json:"skipped"`
}

// ReadManifestFile opens path and parses it with ReadManifest. Relative
// local_path values are resolved against baseDir when it is non-empty. On a
// read error the rows parsed so far are returned with the error.
func ReadManifestFile(path, baseDir string) ([]LogoRecord, ManifestStats, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, ManifestStats{}, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	recs, stats, err := ReadManifest(f)
	resolvePaths(recs, baseDir)
	return recs, stats, err
}

func resolvePaths(recs []LogoRecord, baseDir string) {
	if baseDir == "" {
		return
	}
	for i := range recs {
		if !filepath.IsAbs(recs[i].LocalPath) {
			recs[i].LocalPath = filepath.Join(baseDir, recs[i].LocalPath)
		}
	}
}

// ReadManifest parses a CSV manifest whose header names a domain and a
// local_path column (any order, extra columns ignored). Malformed rows and
// rows with an empty field are skipped with a warning. A repeated domain
// keeps the position of its first row but takes the local_path of its last
// one; each replaced row counts as skipped.
func ReadManifest(r io.Reader) ([]LogoRecord, ManifestStats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ManifestStats{}, ErrEmptyManifestHeader
	}
	if err != nil {
		return nil, ManifestStats{}, fmt.Errorf("read manifest header: %w", err)
	}
	domainCol, pathCol := headerColumns(header)
	if domainCol < 0 || pathCol < 0 {
		return nil, ManifestStats{}, ErrEmptyManifestHeader
	}

	var (
		stats ManifestStats
		recs  []LogoRecord
		seen  = make(map[string]int)
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		stats.Rows++
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return recs, stats, fmt.Errorf("read manifest: %w", err)
			}
			slog.Warn("logocluster: malformed manifest row", "line", perr.Line, "error", perr.Err.Error())
			stats.Skipped++
			continue
		}
		line, _ := cr.FieldPos(0)

		if domainCol >= len(row) || pathCol >= len(row) {
			slog.Warn("logocluster: manifest row is missing columns", "line", line, "fields", len(row))
			stats.Skipped++
			continue
		}
		domain := strings.TrimSpace(row[domainCol])
		localPath := strings.TrimSpace(row[pathCol])
		if domain == "" || localPath == "" {
			slog.Warn("logocluster: manifest row has empty domain or local_path", "line", line)
			stats.Skipped++
			continue
		}
		if i, dup := seen[domain]; dup {
			slog.Warn("logocluster: duplicate domain in manifest, later row replaces earlier",
				"line", line, "domain", domain, "replaced", recs[i].LocalPath, "path", localPath)
			recs[i].LocalPath = localPath
			stats.Skipped++
			continue
		}
		seen[domain] = len(recs)

		recs = append(recs, LogoRecord{Domain: domain, LocalPath: localPath, Index: len(recs)})
	}

	return recs, stats, nil
}

// headerColumns returns the positions of the domain and local_path columns,
// or -1 when a column is absent.
func headerColumns(header []string) (domainCol, pathCol int) {
	domainCol, pathCol = -1, -1
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		switch name {
		case columnDomain:
			if domainCol < 0 {
				domainCol = i
			}
		case columnLocalPath:
			if pathCol < 0 {
				pathCol = i
			}
		}
	}
	return domainCol, pathCol
}
