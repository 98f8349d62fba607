package render

import (
	"testing"

	"gorm.io/datatypes"

	"taocv/internal/database"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func TestBuildModelUserFromCVData(t *testing.T) {
	cv := &database.CV{
		UserFirstName: "Snapshot",
		CVData:        datatypes.JSON(`{"user":{"firstName":"Embedded","lastName":"Person"}}`),
	}

	model := BuildModel(cv, nil)

	user := model["user"].(map[string]any)
	if user["firstName"] != "Embedded" {
		t.Errorf("embedded user should win over snapshot, got %v", user)
	}
}

func TestBuildModelUserFallsBackToSnapshot(t *testing.T) {
	cv := &database.CV{
		UserFirstName: "Jane",
		UserLastName:  "Roe",
		UserEmail:     "jane@example.com",
	}

	model := BuildModel(cv, nil)

	user := model["user"].(map[string]any)
	if user["firstName"] != "Jane" || user["lastName"] != "Roe" || user["email"] != "jane@example.com" {
		t.Errorf("snapshot fallback wrong: %v", user)
	}
}

func TestBuildModelFiltersAndOrdersSections(t *testing.T) {
	cv := &database.CV{
		Sections: []database.CVSection{
			{SectionType: "skills", IsVisible: boolPtr(true), OrderIndex: nil},
			{SectionType: "hidden", IsVisible: boolPtr(false), OrderIndex: intPtr(0)},
			{SectionType: "education", IsVisible: boolPtr(true), OrderIndex: intPtr(2)},
			{SectionType: "experiences", IsVisible: boolPtr(true), OrderIndex: intPtr(1)},
			{SectionType: "unset", IsVisible: nil, OrderIndex: intPtr(3)},
		},
	}

	model := BuildModel(cv, nil)
	sections := model["sections"].([]map[string]any)

	got := make([]string, 0, len(sections))
	for _, s := range sections {
		got = append(got, s["sectionType"].(string))
	}

	want := []string{"experiences", "education", "skills"}
	if len(got) != len(want) {
		t.Fatalf("visible sections = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("visible sections = %v, want %v", got, want)
		}
	}
}

func TestBuildModelSectionDataFallback(t *testing.T) {
	cv := &database.CV{
		Sections: []database.CVSection{
			{SectionType: "skills", IsVisible: boolPtr(true)},
		},
	}

	model := BuildModel(cv, nil)
	sections := model["sections"].([]map[string]any)

	data, ok := sections[0]["sectionData"].([]any)
	if !ok || len(data) != 0 {
		t.Errorf("missing section data should default to empty list, got %v", sections[0]["sectionData"])
	}
}

func TestExecRootShape(t *testing.T) {
	cv := &database.CV{
		CVData: datatypes.JSON(`{"summary":"hi","user":{"firstName":"A"}}`),
		Sections: []database.CVSection{
			{SectionType: "experiences", IsVisible: boolPtr(true), OrderIndex: intPtr(0),
				SectionData: datatypes.JSON(`[{"position":"Dev"}]`)},
		},
	}

	model := BuildModel(cv, map[string]any{"layout": "single"})
	execRoot := ExecRoot(cv, model)

	root, ok := execRoot["cvData"].(map[string]any)
	if !ok {
		t.Fatalf("exec root must nest everything under cvData, got %v", execRoot)
	}
	if root["summary"] != "hi" {
		t.Errorf("raw cv data fields should be present at root: %v", root)
	}
	if root["config"].(map[string]any)["layout"] != "single" {
		t.Errorf("config missing: %v", root["config"])
	}

	index, ok := root["sections"].(map[string]any)
	if !ok {
		t.Fatalf("sections must be a name index, got %T", root["sections"])
	}
	items, ok := index["experiences"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("experiences section data missing: %v", index)
	}
	if items[0].(map[string]any)["position"] != "Dev" {
		t.Errorf("section item wrong: %v", items[0])
	}

	list, ok := root["sectionList"].([]map[string]any)
	if !ok || len(list) != 1 {
		t.Errorf("sectionList missing: %v", root["sectionList"])
	}
}

func TestSampleExecRootIsRenderable(t *testing.T) {
	root := SampleExecRoot(map[string]any{"layout": "single"})

	cvData := root["cvData"].(map[string]any)
	if cvData["user"].(map[string]any)["name"] == "" {
		t.Errorf("sample user missing")
	}
	sections := cvData["sections"].(map[string]any)
	for _, name := range []string{"experiences", "education", "skills"} {
		if _, ok := sections[name]; !ok {
			t.Errorf("sample sections missing %q", name)
		}
	}
}
