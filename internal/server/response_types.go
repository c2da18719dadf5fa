// file: internal/server/response_types.go
// version: 2.0.0
// guid: 7f8a9b0c-1d2e-3f4a-5b6c-7d8e9f0a1b2c

package server

// MessageResponse provides a consistent format for status messages
type MessageResponse struct {
	Message string `json:"message"`
}

// CreateResponse is returned when a song is added
type CreateResponse struct {
	Message string `json:"message"`
	ID      int    `json:"id"`
}

// ExtractRequest is the body of POST /extract_metadata
type ExtractRequest struct {
	URL string `json:"url"`
}

// ExtractResponse is the result of a metadata extraction
type ExtractResponse struct {
	Title           string `json:"title"`
	Singer          string `json:"singer"`
	ImageURL        string `json:"image_url"`
	Year            int    `json:"year"`
	CoverArtPresent bool   `json:"cover_art_present"`
}
