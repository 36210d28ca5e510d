package checkpointer

import ts "github.com/policygrad/goppo/timestep"

// nStep implements checkpointing every N steps
type nStep struct {
	interval int
	object   Serializable

	// filename returns the name of the file to save the object in.
	// To save each checkpoint in a separate file with an incremented
	// number as a suffix (file1.bin, file2.bin, ..., fileK.bin), use
	// FilenameEnumerator to generate the naming function.
	filename func() string
}

// NewNStep returns a checkpointer that saves object every n steps
func NewNStep(n int, object Serializable,
	filename func() string) Checkpointer {
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}
}

// Checkpoint saves the tracked object if the timestep number is a
// multiple of the checkpoint interval
func (n *nStep) Checkpoint(t ts.TimeStep) error {
	if t.Number%n.interval == 0 {
		return n.object.Save(n.filename())
	}
	return nil
}
