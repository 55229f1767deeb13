package analysis

import "floroexpress/internal/domain"

// DefaultAnalysis is used when a reply carries no analysis text.
const DefaultAnalysis = "Document analyzed successfully"

type canned struct {
	analysis    string
	improvement string
	settings    map[string]string
}

var fallbacks = map[domain.FileType]canned{
	domain.FileTypeText: {
		analysis:    "Detected minor formatting inconsistencies and 2 spelling errors.",
		improvement: "Standardized document formatting and corrected all spelling errors.",
		settings: map[string]string{
			"paperSize": "A4",
			"quality":   "Standard",
			"duplex":    "Enabled",
			"colorMode": "Black & White",
		},
	},
	domain.FileTypePicture: {
		analysis:    "Detected suboptimal color balance and resolution for printing.",
		improvement: "Enhanced color accuracy and optimized resolution for print quality.",
		settings: map[string]string{
			"paperType":  "Photo Paper",
			"quality":    "High",
			"colorMode":  "Full Color",
			"borderless": "true",
		},
	},
	domain.FileTypeBlueprint: {
		analysis:    "Detected fine lines requiring clarity enhancement.",
		improvement: "Optimized line weights and enhanced detail visibility.",
		settings: map[string]string{
			"paperSize":  "A1",
			"quality":    "High",
			"lineWeight": "Enhanced",
			"scaling":    "Original Size",
		},
	},
	domain.FileTypeScanned: {
		analysis:    "Detected slight skewing and text clarity issues.",
		improvement: "Corrected alignment and enhanced text readability.",
		settings: map[string]string{
			"paperSize": "A4",
			"quality":   "High",
			"contrast":  "Enhanced",
			"colorMode": "Black & White",
		},
	},
	domain.FileTypeSecure: {
		analysis:    "Document processed with secure handling protocols.",
		improvement: "Applied security watermark and tracking features.",
		settings: map[string]string{
			"paperSize": "A4",
			"watermark": "Confidential",
			"tracking":  "Enabled",
			"secure":    "true",
		},
	},
}

// Fallback returns the canned result for a category. Unknown categories get
// the text document result. Every call returns a fresh copy.
func Fallback(fileType domain.FileType) domain.AnalysisResult {
	c, ok := fallbacks[fileType]
	if !ok {
		fileType = domain.FileTypeText
		c = fallbacks[fileType]
	}

	settings := make(map[string]string, len(c.settings))
	for k, v := range c.settings {
		settings[k] = v
	}
	return domain.AnalysisResult{
		FileType:     fileType,
		Analysis:     c.analysis,
		Improvements: domain.Improvements{c.improvement},
		Settings:     settings,
		Fallback:     true,
	}
}
