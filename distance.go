package logocluster

// Distance returns the Hamming distance between two fingerprints of the same
// kind and length: symmetric, and zero iff they are bit-identical.
func Distance(a, b Fingerprint) (int, error) {
	if err := compatible(a, b); err != nil {
		return -1, err
	}
	d, err := a.Hash.Distance(b.Hash)
	if err != nil {
		return -1, &IncompatibleFingerprintError{
			LeftKind: a.Algorithm(), RightKind: b.Algorithm(),
			LeftBits: a.Bits(), RightBits: b.Bits(),
		}
	}
	return d, nil
}

func compatible(a, b Fingerprint) error {
	if a.Hash == nil || b.Hash == nil ||
		a.Hash.GetKind() != b.Hash.GetKind() ||
		a.Bits() != b.Bits() ||
		len(a.Hash.GetHash()) != len(b.Hash.GetHash()) {
		e := &IncompatibleFingerprintError{}
		if a.Hash != nil {
			e.LeftKind, e.LeftBits = a.Algorithm(), a.Bits()
		}
		if b.Hash != nil {
			e.RightKind, e.RightBits = b.Algorithm(), b.Bits()
		}
		return e
	}
	return nil
}
