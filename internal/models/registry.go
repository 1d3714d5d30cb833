package models

import (
	"context"
	"sync"
	"time"

	"gorm.io/datatypes"
)

// FileURLGenerator produces short-lived download links for uploaded briefs.
type FileURLGenerator interface {
	SignedURL(ctx context.Context, fileID string, ttl time.Duration) (string, error)
}

const summaryURLTTL = 15 * time.Minute

var (
	urlGenerator FileURLGenerator
	registryMu   sync.RWMutex
)

// RegisterFileURLGenerator sets the URL generator for summary files
func RegisterFileURLGenerator(generator FileURLGenerator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	urlGenerator = generator
}

func fileURLGenerator() FileURLGenerator {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return urlGenerator
}

// SignSummaryFile fills in the download link of the project's summary file, if any.
func (p *Project) SignSummaryFile(ctx context.Context) {
	file := p.SummaryFile.Data()
	gen := fileURLGenerator()
	if file == nil || file.FileID == "" || gen == nil {
		return
	}
	url, err := gen.SignedURL(ctx, file.FileID, summaryURLTTL)
	if err != nil {
		log.Warn("Failed to sign summary file %s: %v", file.FileID, err)
		return
	}
	signed := *file
	signed.URL = url
	p.SummaryFile = datatypes.NewJSONType(&signed)
}

// StoredSummaryFile returns a copy of the summary file without its signed link. Links
// expire, so they are generated on every read and never persisted.
func (p *Project) StoredSummaryFile() datatypes.JSONType[*SummaryFile] {
	file := p.SummaryFile.Data()
	if file == nil {
		return p.SummaryFile
	}
	stored := *file
	stored.URL = ""
	return datatypes.NewJSONType(&stored)
}
