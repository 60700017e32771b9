package ghtex

import (
	"errors"

	"github.com/MetricCepheid/Guitar-Hero-PC-Texture-Utilities/internal/dds"
)

// Errors re-exported from the header parser.
var (
	// ErrNoHeader is returned when bytes at an offset do not begin with a
	// well-formed DDS header.
	ErrNoHeader = dds.ErrNoHeader

	// ErrUnknownFormat is returned when a texture's pixel format cannot be
	// determined well enough to size its mip chain.
	ErrUnknownFormat = dds.ErrUnknownFormat

	// ErrImplausible is returned when a header declares dimensions or a mip
	// count outside sane bounds.
	ErrImplausible = dds.ErrImplausible

	// ErrTruncated is returned when a texture's computed span extends past
	// the end of the archive.
	ErrTruncated = dds.ErrTruncated
)

var (
	// ErrNoTextures is returned by Extract when the archive contains no DDS
	// signatures. Nothing is written in that case.
	ErrNoTextures = errors.New("ghtex: no textures found in archive")

	// ErrNoEntries is returned when a manifest contains no usable entries.
	ErrNoEntries = errors.New("ghtex: manifest has no entries")
)
