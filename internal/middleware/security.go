package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// SecurityConfig holds configuration for the security headers middleware.
type SecurityConfig struct {
	// HSTS configuration.
	HSTSEnabled           bool
	HSTSMaxAge            int
	HSTSIncludeSubDomains bool

	// Content Security Policy.
	ContentSecurityPolicy string

	// X-Frame-Options.
	XFrameOptions string

	// X-Content-Type-Options.
	XContentTypeOptions string

	// Referrer-Policy.
	ReferrerPolicy string
}

// DefaultSecurityConfig returns a SecurityConfig with secure defaults.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		HSTSEnabled:           true,
		HSTSMaxAge:            31536000, // 1 year
		HSTSIncludeSubDomains: true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}
}

// SecurityHeaders returns a middleware that adds security headers with
// default configuration.
func SecurityHeaders() gin.HandlerFunc {
	return SecurityHeadersWithConfig(DefaultSecurityConfig())
}

// SecurityHeadersWithConfig returns a security headers middleware with
// custom configuration.
func SecurityHeadersWithConfig(config SecurityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.HSTSEnabled {
			value := "max-age=" + strconv.Itoa(config.HSTSMaxAge)
			if config.HSTSIncludeSubDomains {
				value += "; includeSubDomains"
			}
			c.Header("Strict-Transport-Security", value)
		}
		if config.ContentSecurityPolicy != "" {
			c.Header("Content-Security-Policy", config.ContentSecurityPolicy)
		}
		if config.XFrameOptions != "" {
			c.Header("X-Frame-Options", config.XFrameOptions)
		}
		if config.XContentTypeOptions != "" {
			c.Header("X-Content-Type-Options", config.XContentTypeOptions)
		}
		if config.ReferrerPolicy != "" {
			c.Header("Referrer-Policy", config.ReferrerPolicy)
		}

		c.Next()
	}
}
