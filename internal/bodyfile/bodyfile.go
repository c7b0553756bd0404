// Package bodyfile читает и записывает тела в человекочитаемом формате
// (YAML или JSON). Части в файле могут идти в любом порядке: при сборке
// тела родители вставляются раньше детей.
//
// Пример:
//
//	name: worm
//	parts:
//	  - name: head
//	    position: [0, 0.5, 0]
//	    size: [0.4, 0.4, 0.4]
//	  - name: segment_1
//	    parent: head
//	    position: [0, 0, 0.4]
//	    rotation: [0, 0, 0, 1]
package bodyfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"block-bodies/internal/body"
)

// Format определяет формат файла тела
type Format string

// Поддерживаемые форматы
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ErrUnsupportedFormat возвращается для неизвестного расширения файла
var ErrUnsupportedFormat = errors.New("unsupported body file format")

// File - содержимое файла тела
type File struct {
	Name  string     `yaml:"name,omitempty" json:"name,omitempty"`
	Parts []PartSpec `yaml:"parts" json:"parts"`
}

// PartSpec описывает одну часть в файле. Вращение записывается как (x, y, z, w);
// пропущенное вращение означает единичное, пропущенный размер - (1, 1, 1).
type PartSpec struct {
	Name     string    `yaml:"name" json:"name"`
	Parent   string    `yaml:"parent,omitempty" json:"parent,omitempty"`
	Position []float64 `yaml:"position,flow" json:"position"`
	Rotation []float64 `yaml:"rotation,flow,omitempty" json:"rotation,omitempty"`
	Size     []float64 `yaml:"size,flow,omitempty" json:"size,omitempty"`
}

// FormatFromPath определяет формат по расширению файла
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Decode читает файл тела из r
func Decode(r io.Reader, format Format) (*File, error) {
	var f File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("bodyfile: decode yaml: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("bodyfile: decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("bodyfile: %w: %q", ErrUnsupportedFormat, format)
	}
	return &f, nil
}

// Encode записывает файл тела в w
func Encode(w io.Writer, f *File, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("bodyfile: encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("bodyfile: encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("bodyfile: %w: %q", ErrUnsupportedFormat, format)
	}
}

// Build собирает тело из описаний частей в любом порядке.
// Если родителя не удаётся разрешить (нет такой части или цикл),
// возвращается *body.ParentNotFoundError для первой застрявшей части.
func Build(specs []PartSpec) (*body.Body, error) {
	pending := make([]body.Part, 0, len(specs))
	for i, s := range specs {
		p, err := s.toPart()
		if err != nil {
			return nil, fmt.Errorf("bodyfile: part %d (%q): %w", i, s.Name, err)
		}
		pending = append(pending, p)
	}

	b := body.New()
	for len(pending) > 0 {
		// Каждый проход вставляет все части, чей родитель уже на месте
		var deferred []body.Part
		for _, p := range pending {
			if p.Parent != "" && !b.Contains(p.Parent) {
				deferred = append(deferred, p)
				continue
			}
			if _, err := b.AddPart(p); err != nil {
				return nil, fmt.Errorf("bodyfile: %w", err)
			}
		}

		if len(deferred) == len(pending) {
			stuck := deferred[0]
			return nil, fmt.Errorf("bodyfile: %w", &body.ParentNotFoundError{Parent: stuck.Parent, Child: stuck.Name})
		}
		pending = deferred
	}

	return b, nil
}

// FromBody описывает тело в виде файла; части идут от корней к листьям
func FromBody(b *body.Body, name string) *File {
	parts := b.Parts()
	f := &File{
		Name:  name,
		Parts: make([]PartSpec, 0, len(parts)),
	}
	for _, p := range parts {
		f.Parts = append(f.Parts, PartSpec{
			Name:     p.Name,
			Parent:   p.Parent,
			Position: []float64{p.Position.X(), p.Position.Y(), p.Position.Z()},
			Rotation: []float64{p.Rotation.X(), p.Rotation.Y(), p.Rotation.Z(), p.Rotation.W},
			Size:     []float64{p.Size.X(), p.Size.Y(), p.Size.Z()},
		})
	}
	return f
}

// Load читает файл тела с диска и собирает тело
func Load(path string) (*body.Body, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("bodyfile: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bodyfile: read %q: %w", path, err)
	}

	f, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("%w (file %q)", err, path)
	}

	b, err := Build(f.Parts)
	if err != nil {
		return nil, fmt.Errorf("%w (file %q)", err, path)
	}
	return b, nil
}

// Save записывает тело на диск в формате, выбранном по расширению
func Save(path string, b *body.Body) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return fmt.Errorf("bodyfile: %w", err)
	}

	var buf bytes.Buffer
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := Encode(&buf, FromBody(b, name), format); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("bodyfile: write %q: %w", path, err)
	}
	return nil
}

func (s PartSpec) toPart() (body.Part, error) {
	position, err := vec3(s.Position, mgl64.Vec3{}, "position")
	if err != nil {
		return body.Part{}, err
	}
	size, err := vec3(s.Size, mgl64.Vec3{1, 1, 1}, "size")
	if err != nil {
		return body.Part{}, err
	}

	p := body.NewPart(s.Name, s.Parent, position, size)
	switch len(s.Rotation) {
	case 0:
	case 4:
		p.Rotation = mgl64.Quat{W: s.Rotation[3], V: mgl64.Vec3{s.Rotation[0], s.Rotation[1], s.Rotation[2]}}
		if p.Rotation.Len() == 0 {
			return body.Part{}, errors.New("rotation must not be a zero quaternion")
		}
		p.Rotation = p.Rotation.Normalize()
	default:
		return body.Part{}, fmt.Errorf("rotation needs 4 components, got %d", len(s.Rotation))
	}
	return p, nil
}

func vec3(values []float64, fallback mgl64.Vec3, field string) (mgl64.Vec3, error) {
	switch len(values) {
	case 0:
		return fallback, nil
	case 3:
		return mgl64.Vec3{values[0], values[1], values[2]}, nil
	default:
		return mgl64.Vec3{}, fmt.Errorf("%s needs 3 components, got %d", field, len(values))
	}
}
