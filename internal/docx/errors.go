package docx

import "errors"

// ErrCorrupt indicates the file is not a readable WordprocessingML document.
var ErrCorrupt = errors.New("document corrupt")
