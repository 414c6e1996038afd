package server

import "time"

// minFormFillMillis is the floor below which a submission could not
// have been typed by a person.
const minFormFillMillis = 1000

// botCheckFields piggybacks on JSON request bodies. Website is a
// honeypot input hidden from real users; FormLoadedAt is the unix
// millisecond timestamp the page rendered the form.
type botCheckFields struct {
	Website      string `json:"hp_website"`
	FormLoadedAt int64  `json:"form_loaded_at"`
}

func (b botCheckFields) suspicious(now time.Time) bool {
	if b.Website != "" {
		return true
	}
	if b.FormLoadedAt > 0 {
		elapsed := now.UnixMilli() - b.FormLoadedAt
		if elapsed >= 0 && elapsed < minFormFillMillis {
			return true
		}
	}
	return false
}
