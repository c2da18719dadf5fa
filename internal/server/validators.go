// file: internal/server/validators.go
// version: 2.0.0
// guid: 9b0c1d2e-3f4a-5b6c-7d8e-9f0a1b2c3d4e

package server

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jdfalk/music-catalog/internal/database"
)

// ValidationError represents a validation error with code
type ValidationError struct {
	Field   string
	Message string
	Code    string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// requiredSongFields are checked in this order when a song is created.
var requiredSongFields = []string{"title", "singer", "song_url", "image_url", "year"}

func missingField(field string) ValidationError {
	return ValidationError{
		Field:   field,
		Message: "Missing required field: " + field,
		Code:    "MISSING_FIELD",
	}
}

func invalidYear() ValidationError {
	return ValidationError{Field: "year", Message: "Invalid year", Code: "INVALID_YEAR"}
}

func invalidField(field string) ValidationError {
	return ValidationError{
		Field:   field,
		Message: "Invalid value for field: " + field,
		Code:    "INVALID_FIELD",
	}
}

// ValidateYear accepts a JSON integer or a string holding one.
func ValidateYear(raw json.RawMessage) (int, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, invalidYear()
	}
	switch year := v.(type) {
	case float64:
		if year != math.Trunc(year) || math.Abs(year) > math.MaxInt32 {
			return 0, invalidYear()
		}
		return int(year), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(year))
		if err != nil {
			return 0, invalidYear()
		}
		return n, nil
	default:
		return 0, invalidYear()
	}
}

func stringField(data map[string]json.RawMessage, field string) (string, error) {
	var s string
	if err := json.Unmarshal(data[field], &s); err != nil {
		return "", invalidField(field)
	}
	return s, nil
}

// ParseNewSong validates a create payload.
func ParseNewSong(data map[string]json.RawMessage) (*database.Song, error) {
	for _, field := range requiredSongFields {
		if _, ok := data[field]; !ok {
			return nil, missingField(field)
		}
	}

	song := &database.Song{}
	targets := map[string]*string{
		"title":     &song.Title,
		"singer":    &song.Singer,
		"song_url":  &song.SongURL,
		"image_url": &song.ImageURL,
	}
	for _, field := range requiredSongFields[:4] {
		s, err := stringField(data, field)
		if err != nil {
			return nil, err
		}
		*targets[field] = s
	}

	year, err := ValidateYear(data["year"])
	if err != nil {
		return nil, err
	}
	song.Year = year
	return song, nil
}

// ParseSongPatch validates an update payload. Unknown keys are ignored.
func ParseSongPatch(data map[string]json.RawMessage) (database.SongPatch, error) {
	var patch database.SongPatch
	targets := map[string]**string{
		"title":     &patch.Title,
		"singer":    &patch.Singer,
		"song_url":  &patch.SongURL,
		"image_url": &patch.ImageURL,
	}
	for _, field := range requiredSongFields[:4] {
		if _, ok := data[field]; !ok {
			continue
		}
		s, err := stringField(data, field)
		if err != nil {
			return patch, err
		}
		*targets[field] = &s
	}
	if raw, ok := data["year"]; ok {
		year, err := ValidateYear(raw)
		if err != nil {
			return patch, err
		}
		patch.Year = &year
	}
	return patch, nil
}
