package conf

import "time"

// Validate clamps or replaces settings that would otherwise put the hub in
// an unusable state. It never returns an error — unlike Load, a bad value
// here is silently replaced with its default rather than treated as fatal,
// mirroring how the teacher's config validation favors safe defaults over
// refusing to start.
func Validate(s *Settings) {
	if s.Hub.Port <= 0 || s.Hub.Port > 65535 {
		s.Hub.Port = 80
	}
	if s.Hub.AdInterval <= 0 {
		s.Hub.AdInterval = 30 * time.Second
	}
	if s.Hub.RequestDeadline <= 0 {
		s.Hub.RequestDeadline = 10 * time.Second
	}
	if s.Hub.ShutdownGrace <= 0 {
		s.Hub.ShutdownGrace = 5 * time.Second
	}
	if s.Security.RateLimit.Requests <= 0 {
		s.Security.RateLimit.Requests = 100
	}
	if s.Security.RateLimit.Window <= 0 {
		s.Security.RateLimit.Window = 15 * time.Minute
	}
	if len(s.Security.AllowedOrigins) == 0 {
		s.Security.AllowedOrigins = []string{"*"}
	}
	if s.Security.BodyLimit == "" {
		s.Security.BodyLimit = "10K"
	}
}
