package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"sitepilot/internal/models"
	"sitepilot/internal/permissions"
)

// ValidationErrors wraps the validator's ValidationErrors
type ValidationErrors []playgroundvalidator.FieldError

// CustomValidator wraps go-playground/validator
type CustomValidator struct {
	validator *playgroundvalidator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() echo.Validator {
	v := playgroundvalidator.New()

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("user_role", validateUserRole); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("client_type", validateClientType); err != nil {
		panic(err)
	}

	return &CustomValidator{validator: v}
}

func validateUserRole(fl playgroundvalidator.FieldLevel) bool {
	return permissions.KnownRole(fl.Field().String())
}

func validateClientType(fl playgroundvalidator.FieldLevel) bool {
	return permissions.KnownClientType(fl.Field().String())
}

// Validate implements echo.Validator interface
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		var validationErrors playgroundvalidator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return ValidationErrors(validationErrors)
		}
		return err
	}
	return nil
}

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var fields []string
	for _, err := range ve {
		fields = append(fields, err.Field())
	}
	return fmt.Sprintf("validation failed on fields: %s", strings.Join(fields, ", "))
}

// Fields maps each failing field to a readable message.
func (ve ValidationErrors) Fields() map[string]string {
	errMap := make(map[string]string, len(ve))
	for _, err := range ve {
		field := err.Field()
		param := err.Param()

		switch err.Tag() {
		case "required":
			errMap[field] = fmt.Sprintf("%s is required", field)
		case "email":
			errMap[field] = fmt.Sprintf("%s must be a valid email", field)
		case "min":
			errMap[field] = fmt.Sprintf("%s must be at least %s", field, param)
		case "max":
			errMap[field] = fmt.Sprintf("%s must be at most %s", field, param)
		case "oneof":
			errMap[field] = fmt.Sprintf("%s must be one of [%s]", field, param)
		case "user_role":
			errMap[field] = fmt.Sprintf("%s must be one of: admin, editor, viewer", field)
		case "client_type":
			errMap[field] = fmt.Sprintf("%s must be one of: desktop, mobile, api, web", field)
		default:
			errMap[field] = fmt.Sprintf("%s failed validation: %s", field, err.Tag())
		}
	}
	return errMap
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,user_role"`
}

type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	ClientType string `json:"clientType" validate:"omitempty,client_type"`
}

type AnalyzeRequest struct {
	FileID string `json:"fileId" validate:"required"`
}

type ProjectRequest struct {
	Name     string           `json:"name" validate:"required"`
	Summary  string           `json:"summary"`
	SiteID   string           `json:"siteId" validate:"required"`
	FileInfo *FileInfo        `json:"fileInfo"`
	Analysis *models.Analysis `json:"analysis"`
}

// FileInfo is the upload receipt echoed back when a project is created.
type FileInfo struct {
	FileID       string `json:"fileId"`
	OriginalName string `json:"originalName"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size"`
}

type ProjectUpdateRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1"`
	Summary *string `json:"summary"`
	SiteID  *string `json:"siteId" validate:"omitempty,min=1"`
}

type DiscussionRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	Title     string `json:"title"`
}

type MessageRequest struct {
	Message string `json:"message" validate:"required"`
}

type SuggestEditsRequest struct {
	PageID      string `json:"pageId" validate:"required"`
	ElementType string `json:"elementType"`
}

type ApplyEditRequest struct {
	PageID          string  `json:"pageId" validate:"required"`
	Content         string  `json:"content" validate:"required"`
	Description     string  `json:"description"`
	Element         string  `json:"element"`
	PreviousContent *string `json:"previousContent"`
}

type AudienceRequest struct {
	Audience string `json:"audience" validate:"required"`
}

type ABTestRequest struct {
	PageID string `json:"pageId" validate:"required"`
	Goal   string `json:"goal" validate:"required"`
}

type ItemRequest struct {
	Fields map[string]interface{} `json:"fields" validate:"required"`
}

type AIContentRequest struct {
	Title    string   `json:"title" validate:"required"`
	Keywords []string `json:"keywords"`
	Tone     string   `json:"tone"`
	Length   int      `json:"length" validate:"omitempty,min=50,max=10000"`
}

type PublishRequest struct {
	Domains []string `json:"domains"`
}

type GenerateRequest struct {
	Prompt  string          `json:"prompt" validate:"required"`
	Options *GenerateOption `json:"options"`
}

type GenerateOption struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"maxTokens" validate:"omitempty,min=1"`
	Temperature float64 `json:"temperature" validate:"omitempty,min=0,max=1"`
}

type BatchRequest struct {
	Items          []map[string]interface{} `json:"items" validate:"required"`
	PromptTemplate string                   `json:"promptTemplate" validate:"required"`
	Options        *GenerateOption          `json:"options"`
}
