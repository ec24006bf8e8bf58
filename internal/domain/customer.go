package domain

import (
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

func (c *CustomerInfo) Trim() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Address = strings.TrimSpace(c.Address)
	c.Phone = strings.TrimSpace(c.Phone)
}

// Validate mirrors the checkout form rules: every field is required and the
// email must look like one.
func (c CustomerInfo) Validate() error {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Email) == "" ||
		strings.TrimSpace(c.Address) == "" || strings.TrimSpace(c.Phone) == "" {
		return ErrInvalidCustomer
	}
	if !emailRe.MatchString(strings.TrimSpace(c.Email)) {
		return ErrInvalidCustomer
	}
	return nil
}
