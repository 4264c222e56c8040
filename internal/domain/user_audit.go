package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/softwove/roster/internal/audit"
)

const auditEntity = "user"

func userCreatedEntry(user User) audit.Entry {
	return userEntry("user.created", user.ID, userDetailsMap(user))
}

func userUpdatedEntry(user User) audit.Entry {
	return userEntry("user.updated", user.ID, userDetailsMap(user))
}

func userDeletedEntry(id int64) audit.Entry {
	return userEntry("user.deleted", id, nil)
}

func userEntry(action string, id int64, details map[string]any) audit.Entry {
	return audit.Entry{
		ID:         uuid.New().String(),
		Action:     action,
		Entity:     auditEntity,
		EntityID:   strconv.FormatInt(id, 10),
		RecordedAt: time.Now(),
		Details:    details,
	}
}

func userDetailsMap(user User) map[string]any {
	return map[string]any{
		"email":        user.Email,
		"first_name":   user.FirstName,
		"last_name":    user.LastName,
		"birth_date":   user.BirthDate.Format(DateFormat),
		"address":      user.Address,
		"phone_number": user.PhoneNumber,
	}
}
