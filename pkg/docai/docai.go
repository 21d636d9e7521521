// Package docai reads Google Document AI results into normalized layout pages.
//
// A result comes either from a live ProcessDocument call through Client or from a saved
// JSON response read with LoadJSON. ToPages turns it into the same page shape the hOCR and
// JSON normalizers produce:
//
// - Document AI lines become layout lines, positioned per character when the processor
// returned symbols and at line level otherwise
// - tables become table blocks whose cells reference the lines inside them
// - layout blocks become paragraph blocks over the remaining lines
//
// Usage requires a Google Cloud project with the Document AI API enabled, an OCR processor
// and credentials in GOOGLE_APPLICATION_CREDENTIALS.
package docai

import (
	"context"
	"errors"
	"fmt"
	"os"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/gardar/ocrmark/pkg/config"
	"github.com/gardar/ocrmark/pkg/logger"
)

var (
	// ErrNoImage is returned when a page carries no rendered image
	ErrNoImage = errors.New("docai: page has no image")
	// ErrNoProcessor is returned when the configuration names no processor
	ErrNoProcessor = errors.New("docai: project_id and processor_id are required")
)

// Client sends documents to one Document AI processor
type Client struct {
	api  *documentai.DocumentProcessorClient
	name string
	log  *logger.Logger
}

// NewClient connects to the regional endpoint of cfg.Location. Credentials are read from
// GOOGLE_APPLICATION_CREDENTIALS unless opts supply their own.
func NewClient(ctx context.Context, cfg config.DocAIConfig, log *logger.Logger, opts ...option.ClientOption) (*Client, error) {
	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, ErrNoProcessor
	}
	if log == nil {
		log = logger.Nop()
	}
	location := cfg.Location
	if location == "" {
		location = "us"
	}

	base := []option.ClientOption{option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", location))}
	if creds := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); creds != "" {
		base = append(base, option.WithCredentialsFile(creds))
	}
	api, err := documentai.NewDocumentProcessorClient(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}

	return &Client{
		api:  api,
		name: fmt.Sprintf("projects/%s/locations/%s/processors/%s", cfg.ProjectID, location, cfg.ProcessorID),
		log:  log.WithOperation("docai"),
	}, nil
}

// Close releases the connection
func (c *Client) Close() error {
	return c.api.Close()
}

// Process sends data of the given MIME type ("application/pdf" when empty) and returns
// the processed document
func (c *Client) Process(ctx context.Context, data []byte, mimeType string) (*documentaipb.Document, error) {
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	req := &documentaipb.ProcessRequest{
		Name: c.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType,
			},
		},
		SkipHumanReview: true,
	}

	c.log.Debugw("processing document", "processor", c.name, "bytes", len(data))
	resp, err := c.api.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}
	c.log.Infow("document processed", "pages", len(resp.GetDocument().GetPages()))
	return resp.GetDocument(), nil
}

// LoadJSON reads a Document AI document saved as JSON. Both a bare Document and a full
// ProcessResponse ({"document": {...}}) are accepted.
func LoadJSON(data []byte) (*documentaipb.Document, error) {
	opts := protojson.UnmarshalOptions{DiscardUnknown: true}

	var resp documentaipb.ProcessResponse
	if err := opts.Unmarshal(data, &resp); err == nil && resp.GetDocument() != nil {
		return resp.GetDocument(), nil
	}

	doc := &documentaipb.Document{}
	if err := opts.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode Document AI JSON: %w", err)
	}
	return doc, nil
}

// MarshalJSON encodes doc the way LoadJSON reads it
func MarshalJSON(doc *documentaipb.Document) ([]byte, error) {
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(doc)
}

// PageImage returns the rendered image of page and its MIME type
func PageImage(page *documentaipb.Document_Page) ([]byte, string, error) {
	img := page.GetImage()
	if img == nil || len(img.GetContent()) == 0 {
		return nil, "", ErrNoImage
	}
	return img.GetContent(), img.GetMimeType(), nil
}
