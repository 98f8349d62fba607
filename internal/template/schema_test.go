package template

import "testing"

func TestValidateTemplateConfig(t *testing.T) {
	valid := [][]byte{
		nil,
		[]byte(`{}`),
		[]byte(`{"colors":{"primary":"#000"},"fonts":{"body":"serif"},"layout":{"columns":2}}`),
		[]byte(`{"extraKey":"allowed"}`),
	}
	for _, raw := range valid {
		if err := ValidateTemplateConfig(raw); err != nil {
			t.Errorf("ValidateTemplateConfig(%s) = %v, want nil", raw, err)
		}
	}

	invalid := [][]byte{
		[]byte(`[]`),
		[]byte(`"not an object"`),
		[]byte(`{"colors":"not an object"}`),
	}
	for _, raw := range invalid {
		if err := ValidateTemplateConfig(raw); err == nil {
			t.Errorf("ValidateTemplateConfig(%s) should fail", raw)
		}
	}
}

func TestValidateSectionsDefinition(t *testing.T) {
	valid := [][]byte{
		nil,
		[]byte(`[]`),
		[]byte(`["experiences","education","skills"]`),
	}
	for _, raw := range valid {
		if err := ValidateSectionsDefinition(raw); err != nil {
			t.Errorf("ValidateSectionsDefinition(%s) = %v, want nil", raw, err)
		}
	}

	invalid := [][]byte{
		[]byte(`{}`),
		[]byte(`[1,2]`),
		[]byte(`[""]`),
	}
	for _, raw := range invalid {
		if err := ValidateSectionsDefinition(raw); err == nil {
			t.Errorf("ValidateSectionsDefinition(%s) should fail", raw)
		}
	}
}
