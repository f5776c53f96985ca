package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	minWordCount = 300

	defaultLanguage = "en"
)

// ValidationError 聚合所有校验问题
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid argument: " + strings.Join(e.Issues, "; ")
}

var (
	requestType      = reflect.TypeOf(GenerationRequest{})
	requestValidator = newRequestValidator()
)

// newRequestValidator 沿用 gin 的 binding 标签，错误中的字段名取 json 名
func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(jsonName)
	return v
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// Validate 校验原始请求并转换为 GenerationRequest。
// 先按字段类型转换，再交给 validator 按 binding 规则校验；
// 不会在第一个问题处返回，所有问题合并为一个 ValidationError。
func Validate(raw map[string]any) (*GenerationRequest, error) {
	req := &GenerationRequest{}
	var issues []string
	// 类型不对的字段只报类型问题
	mistyped := make(map[string]bool)

	rv := reflect.ValueOf(req).Elem()
	for i := 0; i < requestType.NumField(); i++ {
		sf := requestType.Field(i)
		name := jsonName(sf)
		v, present := raw[name]
		if !present || v == nil {
			continue
		}
		if issue := assign(rv.Field(i), sf, name, v); issue != "" {
			issues = append(issues, issue)
			mistyped[name] = true
		}
	}

	if req.Language == "" {
		req.Language = defaultLanguage
	}
	if req.OutputFormat == "" {
		req.OutputFormat = OutputFormatMarkdown
	}

	if err := requestValidator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, fmt.Errorf("validate request: %w", err)
		}
		for _, fe := range fieldErrs {
			root, _, _ := strings.Cut(fe.Field(), "[")
			if mistyped[root] {
				continue
			}
			issues = append(issues, describe(fe))
		}
	}

	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	return req, nil
}

// assign 把 JSON 解码出的值写入字段：字符串去空白，枚举转小写，数组元素逐个去空白
func assign(dst reflect.Value, sf reflect.StructField, name string, v any) string {
	switch dst.Kind() {
	case reflect.String:
		s, ok := v.(string)
		allowed := ruleParams(sf, false)["oneof"]
		if !ok {
			if allowed != "" {
				return oneOfIssue(name, allowed)
			}
			return fmt.Sprintf("%s must be a string", name)
		}
		s = strings.TrimSpace(s)
		if allowed != "" {
			s = strings.ToLower(s)
		}
		dst.SetString(s)
	case reflect.Int:
		n, ok := toInt(v)
		if !ok {
			return fmt.Sprintf("%s must be an integer", name)
		}
		dst.SetInt(int64(n))
	case reflect.Slice:
		items, ok := v.([]any)
		if !ok {
			return fmt.Sprintf("%s must be an array", name)
		}
		out := make([]string, len(items))
		for i, item := range items {
			// 非字符串元素按空串处理，由 dive,required 报出
			s, _ := item.(string)
			out[i] = strings.TrimSpace(s)
		}
		dst.Set(reflect.ValueOf(out))
	case reflect.Bool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Sprintf("%s must be a boolean", name)
		}
		dst.SetBool(b)
	}
	return ""
}

// describe 把 validator 的字段错误翻译成对外的问题描述
func describe(fe validator.FieldError) string {
	name := fe.Field()
	root, _, _ := strings.Cut(fe.StructField(), "[")
	sf, _ := requestType.FieldByName(root)

	if strings.Contains(name, "[") {
		return fmt.Sprintf("%s must be a non-empty string of at most %s characters", name, ruleParams(sf, true)["max"])
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "oneof":
		return oneOfIssue(name, fe.Param())
	case "min", "max":
		params := ruleParams(sf, false)
		switch fe.Kind() {
		case reflect.Slice:
			return fmt.Sprintf("%s must contain at most %s items", name, params["max"])
		case reflect.String:
			return fmt.Sprintf("%s must be between %s and %s characters", name, params["min"], params["max"])
		default:
			return fmt.Sprintf("%s must be between %s and %s", name, params["min"], params["max"])
		}
	default:
		return fmt.Sprintf("%s is invalid", name)
	}
}

func oneOfIssue(name, allowed string) string {
	return fmt.Sprintf("%s must be one of: %s", name, strings.Join(strings.Fields(allowed), ", "))
}

// ruleParams 解析 binding 标签中的参数；elem 为 true 时取 dive 之后的元素规则
func ruleParams(sf reflect.StructField, elem bool) map[string]string {
	rules := sf.Tag.Get("binding")
	if head, tail, ok := strings.Cut(rules, ",dive,"); ok {
		rules = head
		if elem {
			rules = tail
		}
	} else if elem {
		return nil
	}
	params := make(map[string]string)
	for _, rule := range strings.Split(rules, ",") {
		if k, v, ok := strings.Cut(rule, "="); ok {
			params[k] = v
		}
	}
	return params
}

// toInt 接受 JSON 解码出的数字类型，要求为整数；超大值截到 int32 范围以便报出区间问题
func toInt(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		f = float64(i)
	default:
		return 0, false
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return int(math.Max(math.MinInt32, math.Min(math.MaxInt32, f))), true
}
