package models

// FileDescriptor describes the file chosen for the photo field.
type FileDescriptor struct {
	Name      string `json:"name" yaml:"name"`
	SizeBytes int64  `json:"size_bytes" yaml:"size_bytes"`
}

// FormSnapshot is a read-only view of every field value at one instant.
// The zero value is an empty form.
type FormSnapshot struct {
	values map[FieldID]string
	file   *FileDescriptor
}

// NewSnapshot copies values and file so later edits to either never leak in.
func NewSnapshot(values map[FieldID]string, file *FileDescriptor) FormSnapshot {
	copied := make(map[FieldID]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	var f *FileDescriptor
	if file != nil {
		c := *file
		f = &c
	}
	return FormSnapshot{values: copied, file: f}
}

// SnapshotFromStrings builds a snapshot from loosely typed input such as a
// decoded YAML or JSON document.
func SnapshotFromStrings(values map[string]string, file *FileDescriptor) FormSnapshot {
	typed := make(map[FieldID]string, len(values))
	for k, v := range values {
		typed[FieldID(k)] = v
	}
	return NewSnapshot(typed, file)
}

// Value returns the raw value of a field, "" when absent.
func (s FormSnapshot) Value(id FieldID) string {
	return s.values[id]
}

// Values returns a copy of all raw values.
func (s FormSnapshot) Values() map[FieldID]string {
	out := make(map[FieldID]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// File returns a copy of the selected file, or nil.
func (s FormSnapshot) File() *FileDescriptor {
	if s.file == nil {
		return nil
	}
	c := *s.file
	return &c
}
