package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	s.displayEndpoints()
	s.displayAuthInfo()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
	s.displayWatchInfo()
}

// displayEndpoints shows available API endpoints
func (s *Server) displayEndpoints() {
	fmt.Println("Available endpoints:")
	fmt.Println("  GET    /health              - Health check")
	fmt.Println("  GET    /stats               - Server statistics")
	fmt.Println("  GET    /personas            - List personas")
	fmt.Println("  POST   /personas            - Create or update a persona")
	fmt.Println("  GET    /personas/{name}     - Fetch a persona")
	fmt.Println("  DELETE /personas/{name}     - Delete a persona")
	fmt.Println("  POST   /personas/extract    - Extract a persona from text")
	fmt.Println("  GET    /questions           - Read the question set")
	fmt.Println("  PUT    /questions           - Replace the question set")
	fmt.Println("  POST   /questions/extract   - Extract questions from text")
	fmt.Println("  POST   /simulate            - Simulate an interview")
	fmt.Println("  POST   /analyze             - Gioia thematic analysis")
	fmt.Println("  POST   /compare             - Compare real and simulated answers")
	fmt.Println("  POST   /framework           - Render the framework graph")
	fmt.Println("  GET    /export/{persona}    - Download a transcript (docx, pdf, markdown, text)")
}

// displayAuthInfo shows authentication configuration
func (s *Server) displayAuthInfo() {
	if len(s.APIKeys) > 0 {
		fmt.Printf("API authentication: ENABLED (%d keys configured)\n", len(s.APIKeys))
		fmt.Println("Include 'X-API-Key: <your-key>' header in requests outside /health and /stats")
	} else {
		fmt.Println("API authentication: DISABLED (no API keys configured)")
		fmt.Println("WARNING: API endpoints are publicly accessible!")
	}
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Println("Request size limit: DISABLED")
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo() {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Printf("Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByAPIKey {
			fmt.Println("  - Per API key rate limiting enabled")
		}
		if s.RateLimit.ByIP {
			fmt.Println("  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Println("Rate limiting: DISABLED")
	}
}

func (s *Server) displayWatchInfo() {
	if s.watcher != nil {
		fmt.Printf("Watching %d prompt and question files for changes\n", len(s.watcher.Files()))
	}
}
