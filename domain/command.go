package domain

// SendMessageCommand carries a send intent. Image holds raw bytes that still
// need to be uploaded; ImageRef holds an already stored reference.
type SendMessageCommand struct {
	SenderID   UserID
	ReceiverID UserID
	Text       string
	Image      []byte
	ImageRef   string
}

func (c SendMessageCommand) IsEmpty() bool {
	return c.Text == "" && len(c.Image) == 0 && c.ImageRef == ""
}

type MarkReadCommand struct {
	ViewerID      UserID
	CounterpartID UserID
}

type HistoryQuery struct {
	ViewerID      UserID
	CounterpartID UserID
	MarkRead      bool
}
