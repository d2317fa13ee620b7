package models

// ProfileSource identifies where a listener profile's taste signal came from.
type ProfileSource string

const (
	ProfileSourceLive       ProfileSource = "live"       // Built from current catalog listening data
	ProfileSourceHistorical ProfileSource = "historical" // Rebuilt from cached liked tracks
	ProfileSourceAbsent     ProfileSource = "absent"     // No taste signal available
)

// ProfileArtist is an artist entry in a listener profile.
type ProfileArtist struct {
	Name       string `json:"name"`
	Popularity int    `json:"popularity"`
}

// ProfileTrack is a track entry in a listener profile.
type ProfileTrack struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

// ListenerProfile is the aggregate taste signal for one listener.
//
// AudioFeatureAvg may be nil: the catalog's audio-features endpoint is
// restricted for some accounts. Ranking substitutes a neutral default
// rather than failing.
type ListenerProfile struct {
	Genres          []string        `json:"genres"`
	TopArtists      []ProfileArtist `json:"top_artists"`
	TopTracks       []ProfileTrack  `json:"top_tracks"`
	AudioFeatureAvg *AudioFeatures  `json:"audio_features_avg,omitempty"`
	Source          ProfileSource   `json:"source"`
}

// HasAudioFeatures reports whether the profile carries a usable average
// audio-feature vector.
func (p *ListenerProfile) HasAudioFeatures() bool {
	return p != nil && p.AudioFeatureAvg != nil
}
