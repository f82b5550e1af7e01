// Package volcfg serializes and deserializes the volume configuration
// store: the persisted label/mountpoint bindings VolVolumes loads at
// startup and rewrites after every successful set_mountp (spec.md §4.7,
// §6 "Configuration file format").
package volcfg

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"os"

	"github.com/deploymenttheory/go-minixfs/internal/mfserrors"
)

// Entry is one label/mountpoint binding.
type Entry struct {
	Label  string
	Mountp string
}

type entryXML struct {
	Label  string `xml:"label,attr"`
	Mountp string `xml:"mountp,attr"`
}

type volumesXML struct {
	Volume []entryXML `xml:"volume"`
}

type rootXML struct {
	XMLName xml.Name   `xml:"root"`
	Volumes volumesXML `xml:"volumes"`
}

// Load reads the config document at path. A missing or empty file is
// treated as an empty set, not an error. A present-but-malformed document,
// or one whose first root child isn't named "volumes", fails KindIO
// (spec.md §6 "readers must reject any document whose first root child
// is not named volumes").
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, mfserrors.Wrap("volcfg.load", mfserrors.KindIO, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	if err := checkFirstRootChild(data); err != nil {
		return nil, err
	}

	var root rootXML
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, mfserrors.Wrap("volcfg.load", mfserrors.KindIO, err)
	}

	entries := make([]Entry, len(root.Volumes.Volume))
	for i, v := range root.Volumes.Volume {
		entries[i] = Entry{Label: v.Label, Mountp: v.Mountp}
	}
	return entries, nil
}

// checkFirstRootChild verifies the root element's first child is named
// "volumes" without relying on encoding/xml's tolerant find-by-tag
// struct binding, which would silently accept a document missing that
// element entirely.
func checkFirstRootChild(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))

	if _, err := nextStart(dec); err != nil {
		return mfserrors.Wrap("volcfg.load", mfserrors.KindIO, err)
	}
	child, err := nextStart(dec)
	if err == io.EOF {
		return nil // root has no children: equivalent to an empty set
	}
	if err != nil {
		return mfserrors.Wrap("volcfg.load", mfserrors.KindIO, err)
	}
	if child.Name.Local != "volumes" {
		return mfserrors.New("volcfg.load", mfserrors.KindIO)
	}
	return nil
}

func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

// Save serializes entries to path as a root/volumes/volume document
// (spec.md §4.7 "synchronously serialize the entire volume set to
// cfg_path").
func Save(path string, entries []Entry) error {
	root := rootXML{}
	root.Volumes.Volume = make([]entryXML, len(entries))
	for i, e := range entries {
		root.Volumes.Volume[i] = entryXML{Label: e.Label, Mountp: e.Mountp}
	}

	body, err := xml.MarshalIndent(root, "", "  ")
	if err != nil {
		return mfserrors.Wrap("volcfg.save", mfserrors.KindIO, err)
	}
	data := append([]byte(xml.Header), body...)
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return mfserrors.Wrap("volcfg.save", mfserrors.KindIO, err)
	}
	return nil
}
