package analysis

import (
	"fmt"
	"strings"
	"time"

	"floroexpress/internal/domain"
)

// SystemPrompt fixes the reply shape the external service must produce.
const SystemPrompt = `You are an expert document analyzer specializing in print optimization.
Analyze the provided document and suggest improvements for print quality and readability.
Format your response as JSON with the following structure:
{
  "analysis": "Brief analysis of the document's current state",
  "improvements": ["List of specific improvements"],
  "settings": {
    "quality": "Suggested print quality",
    "colorMode": "Color mode recommendation",
    "paperSize": "Recommended paper size",
    "orientation": "Portrait or Landscape",
    "additionalNotes": "Any special printing instructions"
  }
}`

const previewLimit = 500

// Request is the metadata sent for one analysis call.
type Request struct {
	Name         string
	Type         string
	Size         int64
	LastModified time.Time
	Content      string
	Width        int
	Height       int
	Pages        int
}

var guidance = map[domain.FileType][]string{
	domain.FileTypeText:      {"Spelling and grammar issues", "Text formatting", "Margins and spacing"},
	domain.FileTypePicture:   {"Image quality", "Color balance", "Resolution for printing"},
	domain.FileTypeBlueprint: {"Line clarity", "Scale and dimensions", "Detail visibility"},
	domain.FileTypeScanned:   {"Text clarity", "Alignment and skew", "Overall readability"},
	domain.FileTypeSecure:    {"Security handling", "Watermarks", "Document tracking"},
}

// BuildPrompt renders the user prompt for one request.
func BuildPrompt(fileType domain.FileType, req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze the following %s for optimal printing:\n\n", strings.ToLower(string(fileType)))
	fmt.Fprintf(&b, "File Name: %s\n", req.Name)
	fmt.Fprintf(&b, "File Type: %s\n", req.Type)
	fmt.Fprintf(&b, "File Size: %s\n", FormatFileSize(req.Size))
	if req.Width > 0 && req.Height > 0 {
		fmt.Fprintf(&b, "Dimensions: %dx%dpx\n", req.Width, req.Height)
		fmt.Fprintf(&b, "Resolution: %dMP\n", (req.Width*req.Height+500_000)/1_000_000)
	}
	if req.Pages > 0 {
		fmt.Fprintf(&b, "Pages: %d\n", req.Pages)
	}
	if req.Content != "" {
		preview := []rune(req.Content)
		suffix := ""
		if len(preview) > previewLimit {
			preview = preview[:previewLimit]
			suffix = "..."
		}
		fmt.Fprintf(&b, "\nContent Preview:\n%s%s\n", string(preview), suffix)
	}

	if focus := guidance[fileType]; len(focus) > 0 {
		fmt.Fprintf(&b, "\nFor a %s, pay particular attention to:\n", strings.ToLower(string(fileType)))
		for _, item := range focus {
			fmt.Fprintf(&b, "   - %s\n", item)
		}
	}

	b.WriteString("\nPlease analyze for the following aspects:\n")
	b.WriteString("1. Print Quality Assessment:\n")
	b.WriteString("   - Resolution and clarity\n")
	b.WriteString("   - Color balance and contrast\n")
	b.WriteString("   - Text readability if applicable\n\n")
	b.WriteString("2. Format Optimization:\n")
	b.WriteString("   - Recommended paper size\n")
	b.WriteString("   - Page orientation\n")
	b.WriteString("   - Margins and layout\n\n")
	b.WriteString("3. Print Settings:\n")
	b.WriteString("   - Color mode (color/grayscale/b&w)\n")
	b.WriteString("   - Quality settings\n")
	b.WriteString("   - Special handling instructions\n\n")
	b.WriteString("4. Suggested Improvements:\n")
	b.WriteString("   - Quality enhancements\n")
	b.WriteString("   - Format adjustments\n")
	b.WriteString("   - Cost-saving opportunities\n")

	return b.String()
}

// splitChunks cuts text into at most max chunks of size runes.
func splitChunks(text string, size, max int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	var chunks []string
	for i := 0; i < len(runes); i += size {
		if max > 0 && len(chunks) == max {
			break
		}
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
