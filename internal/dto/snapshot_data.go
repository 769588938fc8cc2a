// SnapshotsData is a paginated response payload for the snapshot list.
package dto

type SnapshotsData struct {
	Snapshots   []SnapshotInfo `json:"snapshots"`
	Length      int            `json:"length"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Limit       int            `json:"pageSize"`
}
