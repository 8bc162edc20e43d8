// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// StaffMember is a teacher or employee listed on the school team page.
type StaffMember struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	ImageURL   *string `json:"image_url,omitempty"`
	IsDirector bool    `json:"is_director"`
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Bio        *string `json:"bio,omitempty"`
	Position   int     `json:"position"`
	IsActive   bool    `json:"is_active"`
}

// ImageFieldID returns the image mapping key used for the member's portrait.
func (m StaffMember) ImageFieldID() string {
	return "staff-" + m.ID
}

// Image returns the stored image URL or an empty string.
func (m StaffMember) Image() string {
	if m.ImageURL == nil {
		return ""
	}
	return *m.ImageURL
}
