package template

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// 模板元数据的 JSON Schema。
// templateConfig 是松散的配置对象（颜色/字体/布局），只约束顶层形态；
// sectionsDefinition 必须是 section 标识字符串的数组。
const (
	templateConfigSchema = `{
		"type": "object",
		"properties": {
			"colors": {"type": "object"},
			"fonts":  {"type": "object"},
			"layout": {"type": "object"}
		}
	}`

	sectionsDefinitionSchema = `{
		"type": "array",
		"items": {"type": "string", "minLength": 1}
	}`
)

// ValidateTemplateConfig 校验管理员上传的 templateConfig JSON。
func ValidateTemplateConfig(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	return validateAgainst(templateConfigSchema, raw, "templateConfig")
}

// ValidateSectionsDefinition 校验 sectionsDefinition JSON。
func ValidateSectionsDefinition(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	return validateAgainst(sectionsDefinitionSchema, raw, "sectionsDefinition")
}

func validateAgainst(schema string, raw []byte, field string) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	docLoader := gojsonschema.NewBytesLoader(raw)

	res, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("validate %s: %w", field, err)
	}
	if res.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%s schema validation failed: %s", field, strings.Join(msgs, "; "))
}
