package memberships

import (
	"github.com/angelmondragon/boxlink-backend/pkg/db/models"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
)

type membershipWithGymRow struct {
	models.GymMembership
	GymName   string          `gorm:"column:gym_name"`
	GymStatus enums.GymStatus `gorm:"column:gym_status"`
}

type gymMemberRow struct {
	models.GymMembership
	Email     string `gorm:"column:email"`
	FirstName string `gorm:"column:first_name"`
	LastName  string `gorm:"column:last_name"`
}

func membershipWithGymFromRow(row membershipWithGymRow) MembershipWithGym {
	return MembershipWithGym{
		MembershipID: row.ID,
		GymID:        row.GymID,
		UserID:       row.UserID,
		GymName:      row.GymName,
		GymStatus:    row.GymStatus,
		Role:         row.Role,
		Status:       row.Status,
		Permissions:  row.PermissionSet().Slice(),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func membershipRowsToDTO(rows []membershipWithGymRow) []MembershipWithGym {
	out := make([]MembershipWithGym, 0, len(rows))
	for _, row := range rows {
		out = append(out, membershipWithGymFromRow(row))
	}
	return out
}

func gymMembersFromRows(rows []gymMemberRow) []GymMemberDTO {
	out := make([]GymMemberDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, GymMemberDTO{
			MembershipID: row.ID,
			GymID:        row.GymID,
			UserID:       row.UserID,
			Email:        row.Email,
			FirstName:    row.FirstName,
			LastName:     row.LastName,
			Role:         row.Role,
			Status:       row.Status,
			Permissions:  row.PermissionSet().Slice(),
			CreatedAt:    row.CreatedAt,
		})
	}
	return out
}
