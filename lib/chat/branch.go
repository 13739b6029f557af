// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"fmt"
)

// archive snapshots the message's displayed fields into a new Branch
// and points CurrentBranch at the live slot (len(Branches)). Every
// destructive mutation calls this first, so pre-mutation state is
// never lost without an explicit branch overwrite.
func (message *Message) archive(branchID string) {
	message.Branches = append(message.Branches, message.snapshot(branchID))
	message.CurrentBranch = len(message.Branches)
}

// unarchive pops the most recent branch and restores its snapshot into
// the displayed fields, undoing an archive whose follow-up turn failed.
func (message *Message) unarchive() {
	if len(message.Branches) == 0 {
		return
	}
	last := message.Branches[len(message.Branches)-1]
	message.Branches = message.Branches[:len(message.Branches)-1]
	message.restore(last)
	message.CurrentBranch = len(message.Branches)
}

// selectBranch switches which variant of the message is displayed.
// branchIndex == len(Branches) selects the live variant and only moves
// the pointer. A smaller index copies that branch's snapshot into the
// displayed fields; the branch itself stays intact, but whatever live
// content was displayed is overwritten. Switching away from an
// unarchived live variant therefore loses it — that is the documented
// behavior, not an accident of this implementation.
func (message *Message) selectBranch(branchIndex int) error {
	if branchIndex < 0 || branchIndex > len(message.Branches) {
		return fmt.Errorf("chat: branch index %d out of range [0,%d]", branchIndex, len(message.Branches))
	}
	if branchIndex < len(message.Branches) {
		message.restore(message.Branches[branchIndex])
	}
	message.CurrentBranch = branchIndex
	return nil
}
