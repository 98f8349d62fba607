package render

import (
	"encoding/json"
	"sort"

	"taocv/internal/database"
)

// BuildModel 由 CV 实体构建渲染数据模型。
//
//   - user：优先取 cvData 内嵌的 user 对象，否则回退到 CV 上的属主快照。
//   - sections：过滤 IsVisible==true，按 OrderIndex 升序（nil 排最后），
//     每项输出 {sectionType, isVisible, sectionData}；无 section 时为空列表。
//   - config：合并后的配置对象。
func BuildModel(cv *database.CV, mergedConfig map[string]any) map[string]any {
	model := make(map[string]any, 3)

	model["user"] = buildUser(cv)
	model["sections"] = buildSections(cv)
	model["config"] = mergedConfig

	return model
}

func buildUser(cv *database.CV) map[string]any {
	if cvData := decodeLoose(cv.CVData); cvData != nil {
		if user, ok := cvData["user"].(map[string]any); ok {
			return user
		}
	}
	return map[string]any{
		"firstName": cv.UserFirstName,
		"lastName":  cv.UserLastName,
		"email":     cv.UserEmail,
		"avatar":    cv.UserAvatar,
	}
}

func buildSections(cv *database.CV) []map[string]any {
	visible := make([]database.CVSection, 0, len(cv.Sections))
	for _, section := range cv.Sections {
		if section.IsVisible == nil || !*section.IsVisible {
			continue
		}
		visible = append(visible, section)
	}

	// OrderIndex 为 nil 的排在最后
	sort.SliceStable(visible, func(i, j int) bool {
		a, b := visible[i].OrderIndex, visible[j].OrderIndex
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})

	sections := make([]map[string]any, 0, len(visible))
	for _, section := range visible {
		entry := map[string]any{
			"sectionType": section.SectionType,
			"isVisible":   true,
		}
		if data := decodeAny(section.SectionData); data != nil {
			entry["sectionData"] = data
		} else {
			entry["sectionData"] = []any{}
		}
		sections = append(sections, entry)
	}
	return sections
}

// ExecRoot 将模型包到编译方言所期望的 cvData 根之下。
// 执行根以 cvData 原始字段打底，叠加 user/config；sections 重建为
// sectionType → sectionData 的索引（供 {{#each NAME}} 按名迭代），
// 有序列表另存为 sectionList。
func ExecRoot(cv *database.CV, model map[string]any) map[string]any {
	root := make(map[string]any)
	for k, v := range decodeLoose(cv.CVData) {
		root[k] = v
	}

	root["user"] = model["user"]
	root["config"] = model["config"]

	sectionIndex := make(map[string]any)
	sections, _ := model["sections"].([]map[string]any)
	for _, section := range sections {
		name, _ := section["sectionType"].(string)
		if name == "" {
			continue
		}
		sectionIndex[name] = section["sectionData"]
	}
	root["sections"] = sectionIndex
	root["sectionList"] = sections

	return map[string]any{"cvData": root}
}

// SampleExecRoot 返回模板预览用的固定示例数据（不落库）。
func SampleExecRoot(templateConfig map[string]any) map[string]any {
	experiences := []any{
		map[string]any{
			"position":    "Senior Software Engineer",
			"company":     "Tech Corp",
			"title":       "Senior Software Engineer",
			"duration":    "2020 - Present",
			"description": "Led development of microservices architecture...",
		},
	}
	education := []any{
		map[string]any{
			"degree": "Bachelor of Computer Science",
			"school": "University of Technology",
			"year":   "2015 - 2019",
		},
	}
	skills := []any{"Go", "PostgreSQL", "Redis", "React", "Docker"}

	root := map[string]any{
		"user": map[string]any{
			"name":     "John Doe",
			"title":    "Senior Software Engineer",
			"email":    "john.doe@example.com",
			"phone":    "+1 234 567 8900",
			"location": "San Francisco, CA",
			"linkedin": "linkedin.com/in/johndoe",
			"github":   "github.com/johndoe",
		},
		"summary": "Experienced software engineer with 5+ years in full-stack development...",
		"config":  templateConfig,
		"sections": map[string]any{
			"experiences": experiences,
			"education":   education,
			"skills":      skills,
		},
	}
	return map[string]any{"cvData": root}
}

// EmptyExecRoot 返回无数据渲染（查看模板结构）用的执行根。
func EmptyExecRoot(templateConfig map[string]any) map[string]any {
	return map[string]any{"cvData": map[string]any{
		"sections":    map[string]any{},
		"sectionList": []any{},
		"config":      templateConfig,
	}}
}

func decodeLoose(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func decodeAny(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
