package scene

import "github.com/fxamacker/cbor/v2"

// Delta is a partial, field-name-keyed update to a component, holding
// each changed field's CBOR encoding, as handed to Registry.Update by
// server.Runtime.UpdateComponent's caller. Keys match
// the component struct's cbor field names; absent keys are left alone.
// It doubles as the partial payload broadcast in the matching
// Update<Kind> message, so Registry.Update never re-serializes it.
type Delta map[string]cbor.RawMessage

// setField decodes key into *dst if present, leaving dst untouched
// otherwise.
func setField[T any](d Delta, key string, dst *T) error {
	raw, ok := d[key]
	if !ok {
		return nil
	}
	return cbor.Unmarshal(raw, dst)
}

// setOptField decodes key into a freshly allocated *T assigned to *dst
// if present, leaving dst untouched otherwise.
func setOptField[T any](d Delta, key string, dst **T) error {
	raw, ok := d[key]
	if !ok {
		return nil
	}
	var v T
	if err := cbor.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}
