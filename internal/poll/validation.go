package poll

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// newValidator 创建表单校验器，错误中的字段名使用JSON标签
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// nonblank: 去掉首尾空白后不能为空
	_ = v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// normalizePollForm 返回去掉首尾空白后的表单副本
func normalizePollForm(form PollForm) PollForm {
	out := form
	out.Name = strings.TrimSpace(form.Name)
	out.Description = strings.TrimSpace(form.Description)
	out.Candidates = make([]CandidateForm, len(form.Candidates))
	for i, c := range form.Candidates {
		out.Candidates[i] = CandidateForm{CandidateID: c.CandidateID, Label: strings.TrimSpace(c.Label)}
	}
	return out
}

// validatePollForm 校验创建和编辑表单。editing为true时检查候选项ID不能重复。
func validatePollForm(v *validator.Validate, form PollForm, editing bool) error {
	verr := &ValidationError{}
	collectFieldErrors(verr, v.Struct(form))

	labels := make(map[string]int, len(form.Candidates))
	ids := make(map[uint]int, len(form.Candidates))
	for i, c := range form.Candidates {
		key := strings.ToLower(c.Label)
		if key != "" {
			if first, dup := labels[key]; dup {
				verr.add(fmt.Sprintf("candidates[%d].label", i), fmt.Sprintf("与第 %d 个候选项重复", first+1))
			} else {
				labels[key] = i
			}
		}
		if editing && c.CandidateID != 0 {
			if first, dup := ids[c.CandidateID]; dup {
				verr.add(fmt.Sprintf("candidates[%d].candidateId", i), fmt.Sprintf("与第 %d 个候选项的ID重复", first+1))
			} else {
				ids[c.CandidateID] = i
			}
		}
	}
	return verr.orNil()
}

// validateBallotForm 校验选票，并检查所选候选项都属于该投票
func validateBallotForm(v *validator.Validate, form BallotForm, candidates []Candidate) error {
	verr := &ValidationError{}
	collectFieldErrors(verr, v.Struct(form))

	known := make(map[uint]struct{}, len(candidates))
	for _, c := range candidates {
		known[c.ID] = struct{}{}
	}
	for i, id := range form.Candidates {
		if _, ok := known[id]; !ok {
			verr.add(fmt.Sprintf("candidates[%d]", i), "候选项不属于该投票")
		}
	}
	return verr.orNil()
}

func collectFieldErrors(verr *ValidationError, err error) {
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.add("_", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		verr.add(fieldPath(fe), messageFor(fe))
	}
}

// fieldPath 去掉命名空间中的结构体名，例如 "PollForm.candidates[0].label" -> "candidates[0].label"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "nonblank":
		return "不能为空"
	case "max":
		return fmt.Sprintf("长度不能超过 %s", fe.Param())
	case "min":
		return fmt.Sprintf("至少需要 %s 项", fe.Param())
	case "unique":
		return "不能包含重复的候选项"
	default:
		return fmt.Sprintf("校验失败 (%s)", fe.Tag())
	}
}
