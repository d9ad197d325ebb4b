package objective

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"hash/fnv"
)

// objectiveWire is a method-free alias so gob encoding does not recurse
// into MarshalBinary.
type objectiveWire Objective

// MarshalBinary implements the explicit serialize contract for transport to
// an independent worker.
func (o *Objective) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode((*objectiveWire)(o)); err != nil {
		return nil, fmt.Errorf("objective encode: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary reconstructs an objective from its transport form.
func (o *Objective) UnmarshalBinary(data []byte) error {
	var wire objectiveWire
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&wire); err != nil {
		return fmt.Errorf("objective decode: %w", err)
	}
	*o = Objective(wire)
	return nil
}

// Fingerprint returns a stable hash of the transport form, used to verify
// that a reconstructed objective is identical to the original.
func (o *Objective) Fingerprint() (uint64, error) {
	data, err := o.MarshalBinary()
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	if _, err := h.Write(data); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// RoundTrip serializes and reconstructs the objective, returning the copy.
// Used at setup time to surface transport defects before any generation
// starts.
func (o *Objective) RoundTrip() (*Objective, error) {
	data, err := o.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var clone Objective
	if err := clone.UnmarshalBinary(data); err != nil {
		return nil, err
	}

	origFP, err := o.Fingerprint()
	if err != nil {
		return nil, err
	}
	cloneFP, err := clone.Fingerprint()
	if err != nil {
		return nil, err
	}
	if origFP != cloneFP {
		return nil, fmt.Errorf("objective transport mismatch: fingerprint %x != %x", origFP, cloneFP)
	}
	return &clone, nil
}
