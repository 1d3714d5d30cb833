package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"sitepilot/internal/apperr"
	"sitepilot/internal/models"
	"sitepilot/internal/utils/logger"
)

// SummaryField is the multipart field carrying the project brief.
const SummaryField = "projectSummary"

var allowedSummaryTypes = map[string]struct{}{
	".txt":  {},
	".md":   {},
	".json": {},
	".csv":  {},
}

type UploadHandler struct {
	log     *logger.Logger
	maxSize int64
}

func NewUploadHandler(maxSize int64) *UploadHandler {
	if maxSize <= 0 {
		maxSize = 5 << 20
	}
	return &UploadHandler{
		log:     logger.New("upload_handler"),
		maxSize: maxSize,
	}
}

// UploadSummary stores a project brief for later analysis
// @Summary Upload a project summary
// @Description Upload a text brief; the returned fileId is passed to /projects/analyze
// @Tags projects
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param projectSummary formData file true "Project brief"
// @Success 200 {object} map[string]interface{} "File uploaded successfully"
// @Failure 400 {object} map[string]interface{} "No file or unsupported type"
// @Router /projects/upload [post]
func (h *UploadHandler) UploadSummary(c echo.Context) error {
	contentType := c.Request().Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		return apperr.Invalid("Content-Type must be multipart/form-data")
	}

	storage := GetStorageHandler()
	if storage == nil {
		return h.log.Error("Upload rejected", errStorageMissing)
	}

	file, err := c.FormFile(SummaryField)
	if err != nil {
		return apperr.Invalid("No file uploaded")
	}
	if _, ok := allowedSummaryTypes[strings.ToLower(filepath.Ext(file.Filename))]; !ok {
		return apperr.Invalid("Unsupported file type")
	}
	if file.Size > h.maxSize {
		return apperr.Invalid("File is too large")
	}

	src, err := file.Open()
	if err != nil {
		return h.log.Error("Failed to open upload %s", err, file.Filename)
	}
	defer src.Close()

	content, err := io.ReadAll(io.LimitReader(src, h.maxSize+1))
	if err != nil {
		return h.log.Error("Failed to read upload %s", err, file.Filename)
	}

	mime := file.Header.Get("Content-Type")
	fileID, err := storage.Save(c.Request().Context(), content, file.Filename, mime)
	if err != nil {
		return h.log.Error("Failed to store upload %s", err, file.Filename)
	}

	info := models.SummaryFile{
		FileID:       fileID,
		OriginalName: file.Filename,
		ContentType:  mime,
		Size:         int64(len(content)),
		UploadDate:   time.Now().UTC(),
	}
	if url, err := storage.SignedURL(c.Request().Context(), fileID, 15*time.Minute); err == nil {
		info.URL = url
	}

	h.log.Success("Stored project summary %s as %s", file.Filename, fileID)
	return respond(c, http.StatusOK, echo.Map{
		"fileId":   fileID,
		"fileInfo": info,
		"message":  "Project summary uploaded successfully",
	})
}
