package core

import (
	"fmt"
	"strconv"
	"strings"
)

// InProgressMarker is the suffix a segment file carries while it is still
// being written. It is stripped by a rename when the file is finalized.
const InProgressMarker = ".inprogress"

// DataFileName builds the name of a table's segment file for the given
// sequence number, e.g. "sales_3.fact".
func DataFileName(table string, sequence uint32, ext string) string {
	return fmt.Sprintf("%s_%d%s", table, sequence, ext)
}

// DurableName strips the in-progress marker from a file name, if present.
func DurableName(name string) string {
	return strings.TrimSuffix(name, InProgressMarker)
}

// ParseFileSequence extracts the numeric sequence from a segment file name of
// the form <table>_<N><ext>. The token between the final underscore and the
// first dot that follows it must be a base-10 number.
func ParseFileSequence(name string) (uint32, error) {
	token := name[strings.LastIndexByte(name, '_')+1:]
	if dot := strings.IndexByte(token, '.'); dot >= 0 {
		token = token[:dot]
	}
	n, err := strconv.ParseUint(token, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("no file sequence in %q: %w", name, err)
	}
	return uint32(n), nil
}
