package dataset

// UserPrompt is the user turn attached to every generated record.
const UserPrompt = "<image>Describe this image"

// Message is one chat turn of a training record
type Message struct {
	Role    string `json:"role" parquet:"role"`
	Content string `json:"content" parquet:"content"`
}

// Record is one multimodal fine-tuning example: a user turn referencing the
// image, the model's description as the assistant turn, and the image name.
type Record struct {
	Messages []Message `json:"messages" parquet:"messages,list"`
	Images   []string  `json:"images" parquet:"images,list"`
}

// NewRecord builds the training record for an image and its description.
func NewRecord(imageName, description string) Record {
	return Record{
		Messages: []Message{
			{Role: "user", Content: UserPrompt},
			{Role: "assistant", Content: description},
		},
		Images: []string{imageName},
	}
}

// Description returns the assistant turn of the record, if any.
func (r *Record) Description() string {
	for _, m := range r.Messages {
		if m.Role == "assistant" {
			return m.Content
		}
	}
	return ""
}
