// Package model defines the memory record and its validation rules.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type MemoryType string

const (
	TypeArchitecture MemoryType = "architecture"
	TypePattern      MemoryType = "pattern"
	TypeFeature      MemoryType = "feature"
	TypeAPI          MemoryType = "api"
	TypeBug          MemoryType = "bug"
	TypeDecision     MemoryType = "decision"
)

// ValidTypes are the allowed memory types.
var ValidTypes = map[MemoryType]bool{
	TypeArchitecture: true,
	TypePattern:      true,
	TypeFeature:      true,
	TypeAPI:          true,
	TypeBug:          true,
	TypeDecision:     true,
}

const MaxKeyLength = 255

type Relationships struct {
	DependsOn  []string `json:"dependsOn,omitempty"`
	Implements []string `json:"implements,omitempty"`
}

type Metadata struct {
	AccessCount int    `json:"accessCount"`
	CreatedBy   string `json:"createdBy,omitempty"`
	SourceFile  string `json:"sourceFile,omitempty"`
}

// Memory is the sole persistent entity. Records are partitioned by
// ProjectID and addressed by Key within a project. Timestamps are
// epoch milliseconds.
type Memory struct {
	ID            string        `json:"id"`
	ProjectID     string        `json:"projectId"`
	Key           string        `json:"key"`
	Type          MemoryType    `json:"type"`
	Content       string        `json:"content"`
	Tags          []string      `json:"tags,omitempty"`
	Relationships Relationships `json:"relationships"`
	Metadata      Metadata      `json:"metadata"`
	CreatedAt     int64         `json:"createdAt"`
	UpdatedAt     int64         `json:"updatedAt"`
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current time in epoch milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// ValidationError names every field that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid memory: %s", strings.Join(e.Fields, ", "))
}

// Validate checks the record against the schema. It reports all
// offending fields at once rather than stopping at the first.
func (m *Memory) Validate() error {
	var fields []string

	if m.ID == "" {
		fields = append(fields, "id must not be empty")
	}
	if m.ProjectID == "" {
		fields = append(fields, "projectId must not be empty")
	}
	if m.Key == "" {
		fields = append(fields, "key must not be empty")
	} else if len(m.Key) > MaxKeyLength {
		fields = append(fields, fmt.Sprintf("key exceeds %d characters", MaxKeyLength))
	}
	if !ValidTypes[m.Type] {
		fields = append(fields, fmt.Sprintf("type %q is not one of architecture, pattern, feature, api, bug, decision", m.Type))
	}
	if m.Content == "" {
		fields = append(fields, "content must not be empty")
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// HasTag reports whether the record carries the given tag.
func (m *Memory) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
