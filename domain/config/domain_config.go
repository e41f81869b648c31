package config

import "fmt"

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Account constraints
	MinUsernameLength int
	MaxUsernameLength int
	MinPasswordLength int
	MaxPasswordBytes  int // bcrypt only hashes the first 72 bytes and refuses longer input

	// Memory constraints
	MaxTitleLength       int
	MaxDescriptionLength int
	MaxImages            int
	MaxImageBytes        int // decoded size of a single image
	CoordinatePrecision  int // decimal places kept for longitude/latitude

	// Import constraints
	MaxImportRecords int
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MinUsernameLength: 3,
		MaxUsernameLength: 32,
		MinPasswordLength: 6,
		MaxPasswordBytes:  72,

		MaxTitleLength:       200,
		MaxDescriptionLength: 5000,
		MaxImages:            10,
		MaxImageBytes:        5 * 1024 * 1024,
		CoordinatePrecision:  6,

		MaxImportRecords: 5000,
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.MinUsernameLength < 1 || c.MaxUsernameLength < c.MinUsernameLength {
		return fmt.Errorf("invalid username length bounds: %d..%d", c.MinUsernameLength, c.MaxUsernameLength)
	}
	if c.MinPasswordLength < 1 {
		return fmt.Errorf("minimum password length must be positive")
	}
	if c.MaxPasswordBytes < c.MinPasswordLength || c.MaxPasswordBytes > 72 {
		return fmt.Errorf("maximum password size must be between %d and 72 bytes", c.MinPasswordLength)
	}
	if c.MaxImages < 0 || c.MaxImageBytes <= 0 {
		return fmt.Errorf("invalid image limits: count=%d bytes=%d", c.MaxImages, c.MaxImageBytes)
	}
	if c.CoordinatePrecision < 0 || c.CoordinatePrecision > 12 {
		return fmt.Errorf("coordinate precision out of range: %d", c.CoordinatePrecision)
	}
	return nil
}
