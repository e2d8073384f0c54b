// Package observable provides a mutable list that publishes its edits as
// ChangeSets, and a read-only view kept in sync by replaying them.
//
// A List is owned by one component and mutated only through Edit. Every
// successful Edit emits exactly one ChangeSet to all subscribers, in the
// order the edits were committed:
//
//	list := observable.NewList[int]()
//	view := observable.Bind(list.Connect())
//	defer view.Dispose()
//
//	_ = list.Edit(func(e *observable.Editor[int]) {
//	    e.Clear()
//	    e.AddRange(5, 7)
//	})
//	// view.Items() == []int{5, 7}
//
// Connect replays the current contents to each new subscriber before any
// live ChangeSet, so late subscribers start in sync.
package observable
