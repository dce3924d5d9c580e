package timezone

import "time"

// Stockholm is the locale of the short interest register. Its published
// timestamps carry no offset, so they must be parsed in this location or
// marker times drift when the process runs in another timezone.
var Stockholm *time.Location

func init() {
	var err error
	Stockholm, err = time.LoadLocation("Europe/Stockholm")
	if err != nil {
		panic(err)
	}
}
