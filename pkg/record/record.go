package record

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const (
	VarID    = "id"
	VarLevel = "level"

	rootElement = "root"
)

var (
	ErrMalformed  = errors.New("malformed record document")
	ErrMissingVar = errors.New("record var not found")
)

// Record is one synthetic id/level/objects unit. It maps to exactly one XML document.
type Record struct {
	ID      string
	Level   int
	Objects []string
}

// Fields holds the var values as they appear in the document.
type Fields struct {
	ID    string
	Level string
}

type document struct {
	XMLName xml.Name
	Vars    []variable `xml:"var"`
	Objects []object   `xml:"objects>object"`
}

type variable struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type object struct {
	Name string `xml:"name,attr"`
}

func Marshal(rec Record) ([]byte, error) {
	doc := document{
		XMLName: xml.Name{Local: rootElement},
		Vars: []variable{
			{Name: VarID, Value: rec.ID},
			{Name: VarLevel, Value: strconv.Itoa(rec.Level)},
		},
		Objects: lo.Map(rec.Objects, func(item string, index int) object {
			return object{Name: item}
		}),
	}

	b, err := xml.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "record marshal")
	}

	return b, nil
}

// Parse extracts the id and level vars and the object names from a document.
// The root element name is not checked.
func Parse(data []byte) (Fields, []string, error) {
	doc, err := decode(data)
	if err != nil {
		return Fields{}, nil, err
	}

	id, err := doc.value(VarID)
	if err != nil {
		return Fields{}, nil, err
	}

	lvl, err := doc.value(VarLevel)
	if err != nil {
		return Fields{}, nil, err
	}

	names := lo.Map(doc.Objects, func(item object, index int) string {
		return item.Name
	})

	return Fields{ID: id, Level: lvl}, names, nil
}

// decode reads exactly one root element. Only whitespace, comments,
// processing instructions and directives may surround it.
func decode(data []byte) (document, error) {
	var doc document

	dec := xml.NewDecoder(bytes.NewReader(data))
	root := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if !root {
				return document{}, errors.Wrap(ErrMalformed, "no root element")
			}
			return doc, nil
		}
		if err != nil {
			return document{}, errors.Wrap(ErrMalformed, err.Error())
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root {
				return document{}, errors.Wrapf(ErrMalformed, "unexpected element %q after root", t.Name.Local)
			}
			if err := dec.DecodeElement(&doc, &t); err != nil {
				return document{}, errors.Wrap(ErrMalformed, err.Error())
			}
			root = true
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return document{}, errors.Wrap(ErrMalformed, "text outside root element")
			}
		case xml.Comment, xml.ProcInst, xml.Directive:
		default:
			return document{}, errors.Wrapf(ErrMalformed, "unexpected token %T", t)
		}
	}
}

func (d *document) value(name string) (string, error) {
	v, found := lo.Find(d.Vars, func(item variable) bool {
		return item.Name == name
	})
	if !found {
		return "", errors.Wrapf(ErrMissingVar, "var %q", name)
	}

	return v.Value, nil
}
