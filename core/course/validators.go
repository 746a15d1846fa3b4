package course

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/classroom/core"
)

var (
	taskStatusTag  = "taskstatus"
	taskStatusText = "status must be one of pending, completed or overdue"
)

func init() {
	_ = core.Validate.RegisterValidation(taskStatusTag, taskStatusValidation)
	core.RegisterCustomTranslation(taskStatusTag, taskStatusText)
}

// Custom Validators

// taskStatusValidation checks that the status is one of AllTaskStatuses
func taskStatusValidation(fl validator.FieldLevel) bool {
	switch st := fl.Field().Interface().(type) {
	case TaskStatus:
		return st.Valid()
	case string:
		return TaskStatus(st).Valid()
	}
	return false
}
