package services

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/exp/slices"

	"taskflow-project/backend/models"
)

var (
	editorRoles  = []models.CollaboratorRole{models.CollaboratorAdmin, models.CollaboratorEditor}
	managerRoles = []models.CollaboratorRole{models.CollaboratorAdmin}
)

func canViewProject(p *models.Project, userID primitive.ObjectID) bool {
	if p.IsOwner(userID) {
		return true
	}
	_, ok := p.Collaborator(userID)
	return ok
}

func canEditProject(p *models.Project, userID primitive.ObjectID) bool {
	return hasProjectRole(p, userID, editorRoles)
}

func canManageProject(p *models.Project, userID primitive.ObjectID) bool {
	return hasProjectRole(p, userID, managerRoles)
}

// hasProjectRole is true for the owner and for collaborators holding one of
// the allowed roles.
func hasProjectRole(p *models.Project, userID primitive.ObjectID, allowed []models.CollaboratorRole) bool {
	if p.IsOwner(userID) {
		return true
	}
	c, ok := p.Collaborator(userID)
	return ok && slices.Contains(allowed, c.Role)
}
