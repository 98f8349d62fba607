package render

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Merge 将模板基础配置与 CV 级自定义覆盖合并。
// 纯函数：不修改入参（防御性拷贝）。
//
// 规则：
//   - base 为 nil 视为空对象；override 为空则原值返回 base。
//   - 顶层键两边都是对象时，只向下合并一层：子对象按键覆盖，不再递归。
//   - 其余类型（数组、标量、类型不一致）由 override 整体替换。
func Merge(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	if len(override) == 0 {
		return merged
	}

	for key, overrideVal := range override {
		baseObj, baseIsObj := merged[key].(map[string]any)
		overrideObj, overrideIsObj := overrideVal.(map[string]any)
		if baseIsObj && overrideIsObj {
			nested := make(map[string]any, len(baseObj)+len(overrideObj))
			for k, v := range baseObj {
				nested[k] = v
			}
			for k, v := range overrideObj {
				nested[k] = v
			}
			merged[key] = nested
			continue
		}
		merged[key] = overrideVal
	}

	return merged
}

// MergeJSON 在 JSON 列上执行 Merge，空值按约定处理。
func MergeJSON(base, override datatypes.JSON) (map[string]any, error) {
	baseMap, err := decodeObject(base)
	if err != nil {
		return nil, fmt.Errorf("decode base config: %w", err)
	}
	overrideMap, err := decodeObject(override)
	if err != nil {
		return nil, fmt.Errorf("decode customization: %w", err)
	}
	return Merge(baseMap, overrideMap), nil
}

func decodeObject(raw datatypes.JSON) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
