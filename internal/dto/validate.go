package dto

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sohamsontakkespotify-afk/erp--sub001/internal/model"
)

// 服务层与 gin 绑定共用 binding 标签，消息队列等非 HTTP 入口同样经过校验
var validate *validator.Validate

var vehicleNoPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 -]{1,29}$`)

func init() {
	validate = validator.New()
	validate.SetTagName("binding")
	RegisterValidations(validate)
}

// RegisterValidations 注册自定义规则；gin 的绑定校验器也需调用一次
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("vehicle_no", func(fl validator.FieldLevel) bool {
		return vehicleNoPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := model.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
}

// Validate 按 binding 标签校验结构体，返回可读的字段错误
func Validate(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
