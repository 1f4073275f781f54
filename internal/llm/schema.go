package llm

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/invopop/jsonschema"
)

// SchemaFor 由 Go 类型反射出 JSON Schema，用于 response_format 与提示词
func SchemaFor(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	return reflector.Reflect(v)
}

// SchemaHint 以紧凑 JSON 文本形式给出 Schema，附加在提示词末尾
func SchemaHint(schema *jsonschema.Schema) string {
	if schema == nil {
		return ""
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return ""
	}
	return string(data)
}

// stripCodeFence 去除 ```json 代码块包裹
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```JSON")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// DecodeJSON 解码模型输出；若有前后说明文字，截取第一个 { 到最后一个 } 之间的内容
func DecodeJSON(content string, v any) error {
	content = stripCodeFence(content)
	if content == "" {
		return errors.New("输出为空")
	}
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return errors.New("输出中没有 JSON 对象")
	}
	return json.Unmarshal([]byte(content[start:end+1]), v)
}

// CorrectivePrompt 在原提示词后附加上次输出的问题，要求模型重新输出
func CorrectivePrompt(prompt, reason string) string {
	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\n---\nYour previous response was rejected: ")
	sb.WriteString(reason)
	sb.WriteString("\nReturn ONLY one JSON object that satisfies every constraint above. No markdown, no commentary.")
	return sb.String()
}
