package model

// WatchItem is the natural key of a followable item (a pull request or an
// issue): its number within a repository of an organisation.
type WatchItem struct {
	Number       int64  `json:"number"`
	Repo         string `json:"repo"`
	Organisation string `json:"organisation"`
}
