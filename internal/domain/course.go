package domain

// ContentItem is a video or document hosted on a third-party share link,
// together with the course it belongs to.
type ContentItem struct {
	ID           int64
	Kind         ResourceKind
	URL          string
	Filename     string
	Provider     CloudProvider
	Description  string
	ModuleID     int64
	CourseID     int64
	InstructorID int64
}

// Descriptor returns the ownership facts used for authorization.
func (c *ContentItem) Descriptor() ResourceDescriptor {
	return ResourceDescriptor{
		Kind:               c.Kind,
		ResourceID:         c.ID,
		OwnerCourseID:      c.CourseID,
		CourseInstructorID: c.InstructorID,
	}
}
