package ghtex

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/opencontainers/go-digest"
)

// ManifestName is the default manifest file name inside an extraction
// directory.
const ManifestName = "dds_index.txt"

// ManifestEntry binds one extracted texture to its position in the archive.
type ManifestEntry struct {
	// Name is the ordinal artifact name, dds_NNN.dds.
	Name string

	// Offset is the byte position of the texture's header in the archive.
	Offset int64

	// Format is the FourCC recorded at extraction. Repacking compares it
	// against live archive bytes as a sanity check, never for sizing.
	Format string

	// Digest, when present, is the digest of the slot bytes at extraction.
	// Repacking warns when the live archive no longer matches, since that
	// usually means the manifest belongs to a different archive version.
	Digest digest.Digest
}

// Manifest is the ordered list of textures extracted from one archive.
type Manifest struct {
	// Source is the archive name recorded in the manifest heading.
	Source string

	Entries []ManifestEntry
}

// entryName returns the ordinal artifact name for 1-based index i.
func entryName(i int) string {
	return fmt.Sprintf("dds_%03d.dds", i)
}

// formatLabel renders a FourCC for manifests and diagnostics.
func formatLabel(fourCC string) string {
	if fourCC == "" {
		return "UNKNOWN"
	}
	return fourCC
}

// WriteFile writes the manifest as text, atomically.
func (m *Manifest) WriteFile(path string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Extracted DDS Files Log for %s\n", m.Source)
	b.WriteString("===========================================\n\n")
	for _, e := range m.Entries {
		fmt.Fprintf(&b, "%s\n", e.Name)
		fmt.Fprintf(&b, "  Offset: %d bytes (0x%X)\n", e.Offset, e.Offset)
		fmt.Fprintf(&b, "  Format: %s\n", formatLabel(e.Format))
		if e.Digest != "" {
			fmt.Fprintf(&b, "  Digest: %s\n", e.Digest)
		}
		b.WriteString("\n")
	}
	if err := writeFileAtomic(path, []byte(b.String())); err != nil {
		return fmt.Errorf("ghtex: write manifest: %w", err)
	}
	return nil
}

var (
	manifestHeadingRE = regexp.MustCompile(`^Extracted DDS Files Log for (.+)$`)
	manifestNameRE    = regexp.MustCompile(`^(dds_\d+\.dds)$`)
	manifestOffsetRE  = regexp.MustCompile(`^Offset:\s*(\d+)`)
	manifestFormatRE  = regexp.MustCompile(`^Format:\s*(\S+)`)
	manifestDigestRE  = regexp.MustCompile(`^Digest:\s*(\S+)`)
)

// ReadManifest loads the manifest file at path.
//
// Parsing is line oriented and tolerant: unrecognized lines are skipped,
// and an entry counts only once a name line has been followed by an offset
// line. ErrNoEntries is returned when no entry survives.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ghtex: read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses manifest text. See ReadManifest.
func ParseManifest(data []byte) (*Manifest, error) {
	m := &Manifest{}
	var cur *ManifestEntry
	var curSized bool

	flush := func() {
		if cur != nil && curSized {
			m.Entries = append(m.Entries, *cur)
		}
		cur = nil
		curSized = false
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case manifestNameRE.MatchString(line):
			flush()
			cur = &ManifestEntry{Name: line}
		case cur == nil:
			if g := manifestHeadingRE.FindStringSubmatch(line); g != nil {
				m.Source = g[1]
			}
		default:
			if g := manifestOffsetRE.FindStringSubmatch(line); g != nil {
				off, err := strconv.ParseInt(g[1], 10, 64)
				if err != nil {
					// Offset out of range, drop the entry.
					cur = nil
					curSized = false
					continue
				}
				cur.Offset = off
				curSized = true
				continue
			}
			if g := manifestFormatRE.FindStringSubmatch(line); g != nil {
				cur.Format = g[1]
				continue
			}
			if g := manifestDigestRE.FindStringSubmatch(line); g != nil {
				if d, err := digest.Parse(g[1]); err == nil {
					cur.Digest = d
				}
				continue
			}
		}
	}
	flush()
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ghtex: parse manifest: %w", err)
	}
	if len(m.Entries) == 0 {
		return nil, ErrNoEntries
	}
	return m, nil
}
