package models

import "fmt"

// Owner identifies whose reminders are being read or written. The zero value
// is the anonymous device owner.
type Owner struct {
	UserID int
	Token  string
}

func Anonymous() Owner {
	return Owner{}
}

func Authenticated(userID int, token string) Owner {
	return Owner{UserID: userID, Token: token}
}

func (o Owner) IsAuthenticated() bool {
	return o.UserID != 0 && o.Token != ""
}

func (o Owner) String() string {
	if !o.IsAuthenticated() {
		return "anonymous"
	}
	return fmt.Sprintf("user:%d", o.UserID)
}
