package normalizer

// Upstream payload shapes. Every field is a pointer: the API is not
// contractually stable, so absence must be distinguishable from zero.
// Only the fields normalization reads are declared; the rest of the
// document is ignored by the decoder.

// TeamPayload is the root of one raw team response
type TeamPayload struct {
	Status  *string  `json:"status"`
	Results *Results `json:"results"`
}

// Results carries the team's season roster
type Results struct {
	Season []SeasonMember `json:"season"`
}

// SeasonMember is one player's season entry in a raw payload
type SeasonMember struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"displayName"`
	Typed       *int64  `json:"typed"`
	Errs        *int64  `json:"errs"`
	RacesPlayed *int32  `json:"racesPlayed"`
	Secs        *int64  `json:"secs"`
}
