package main

import (
	"fmt"
	"os"

	"github.com/ontocore/ontocore-server/internal/rf2"
	"github.com/ontocore/ontocore-server/internal/rf2/reader"
)

// fileFlags names the --concept/--description/... command-line flags
// by RF2 file kind; classifying an arbitrary release archive by
// filename is out of scope, so the caller states each file's kind
// explicitly.
type fileFlags struct {
	concept              string
	description          string
	relationship         string
	concreteRelationship string
	identifier           string
	refsetMember         string
}

// openFiles opens every non-empty flag path and returns it tagged
// with its RF2 file kind, ready for Coordinator.Run.
func openFiles(f fileFlags) ([]rf2.ArchiveFile, map[string]int, error) {
	kinds := []struct {
		path string
		kind reader.FileKind
	}{
		{f.concept, reader.KindConcept},
		{f.description, reader.KindDescription},
		{f.relationship, reader.KindRelationship},
		{f.concreteRelationship, reader.KindConcreteRelationship},
		{f.identifier, reader.KindIdentifier},
		{f.refsetMember, reader.KindRefsetMember},
	}

	var files []rf2.ArchiveFile
	for _, k := range kinds {
		if k.path == "" {
			continue
		}
		fh, err := os.Open(k.path)
		if err != nil {
			closeOpened(files)
			return nil, nil, fmt.Errorf("open %s: %w", k.path, err)
		}
		files = append(files, rf2.ArchiveFile{Kind: k.kind, Reader: fh})
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no input files given")
	}
	return files, nil, nil
}

func closeOpened(files []rf2.ArchiveFile) {
	for _, f := range files {
		if closer, ok := f.Reader.(*os.File); ok {
			_ = closer.Close()
		}
	}
}

// closeFiles releases every file opened by openFiles.
func closeFiles(files []rf2.ArchiveFile) {
	closeOpened(files)
}
