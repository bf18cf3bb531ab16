package domain

// Action is an operation a session asks to perform against an owner's data.
type Action uint8

const (
	ActionUploadRecord Action = iota + 1
	ActionReadRecord
	ActionListRecords
	ActionGrantAccess
	ActionRevokeAccess
	ActionListGrants
	ActionListGrantedOwners
	ActionListUsers
	ActionListGrantees
)

// Access tells the caller how an authorized action reaches the owner's key.
type Access uint8

const (
	// AccessSelf means the actor is the owner and uses the owner's secret key directly.
	AccessSelf Access = iota + 1
	// AccessViaGrant means the actor must hold a valid grant from the owner.
	AccessViaGrant
	// AccessAdministrative means the action touches no owner key material.
	AccessAdministrative
)

// Authorize decides whether actor may perform action on ownerID's data.
func Authorize(actor *User, action Action, ownerID string) (Access, error) {
	if actor == nil {
		return 0, ErrForbiddenAction
	}

	switch actor.Role {
	case RoleOwner:
		switch action {
		case ActionUploadRecord, ActionReadRecord, ActionListRecords,
			ActionGrantAccess, ActionRevokeAccess, ActionListGrants:
			if actor.Address != ownerID {
				return 0, ErrForbiddenAction
			}
			return AccessSelf, nil
		case ActionListGrantees:
			return AccessAdministrative, nil
		case ActionListGrantedOwners, ActionListUsers:
			return 0, ErrForbiddenAction
		}
	case RoleGrantee:
		switch action {
		case ActionUploadRecord, ActionReadRecord, ActionListRecords:
			if actor.Address == ownerID {
				return 0, ErrForbiddenAction
			}
			return AccessViaGrant, nil
		case ActionListGrantedOwners:
			return AccessSelf, nil
		case ActionGrantAccess, ActionRevokeAccess, ActionListGrants, ActionListUsers, ActionListGrantees:
			return 0, ErrForbiddenAction
		}
	case RoleAdmin:
		switch action {
		case ActionListUsers, ActionListGrantees:
			return AccessAdministrative, nil
		case ActionUploadRecord, ActionReadRecord, ActionListRecords, ActionGrantAccess,
			ActionRevokeAccess, ActionListGrants, ActionListGrantedOwners:
			return 0, ErrForbiddenAction
		}
	}
	return 0, ErrForbiddenAction
}
