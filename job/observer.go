package job

import "github.com/pithecene-io/mwi/types"

// Observer receives job notifications. Renderers implement it; they read
// state through the arguments and never mutate the machine.
type Observer interface {
	// OnUpdate is called for every progress event while streaming.
	OnUpdate(percent float64, status string)
	// OnSuccess is called once when the job succeeds.
	OnSuccess(downloadURL string)
	// OnFailure is called once when the job fails, for any reason.
	OnFailure(message string)
}

// TransitionObserver is optionally implemented by observers that want every
// state transition, including those that carry no payload.
type TransitionObserver interface {
	OnTransition(from, to types.State)
}

// Observers fans notifications out to several observers in order.
type Observers []Observer

// OnUpdate implements Observer.
func (o Observers) OnUpdate(percent float64, status string) {
	for _, obs := range o {
		obs.OnUpdate(percent, status)
	}
}

// OnSuccess implements Observer.
func (o Observers) OnSuccess(downloadURL string) {
	for _, obs := range o {
		obs.OnSuccess(downloadURL)
	}
}

// OnFailure implements Observer.
func (o Observers) OnFailure(message string) {
	for _, obs := range o {
		obs.OnFailure(message)
	}
}

// OnTransition implements TransitionObserver for members that support it.
func (o Observers) OnTransition(from, to types.State) {
	for _, obs := range o {
		if t, ok := obs.(TransitionObserver); ok {
			t.OnTransition(from, to)
		}
	}
}

// ObserverFuncs adapts plain functions to Observer. Nil funcs are skipped.
type ObserverFuncs struct {
	Update     func(percent float64, status string)
	Success    func(downloadURL string)
	Failure    func(message string)
	Transition func(from, to types.State)
}

// OnUpdate implements Observer.
func (f ObserverFuncs) OnUpdate(percent float64, status string) {
	if f.Update != nil {
		f.Update(percent, status)
	}
}

// OnSuccess implements Observer.
func (f ObserverFuncs) OnSuccess(downloadURL string) {
	if f.Success != nil {
		f.Success(downloadURL)
	}
}

// OnFailure implements Observer.
func (f ObserverFuncs) OnFailure(message string) {
	if f.Failure != nil {
		f.Failure(message)
	}
}

// OnTransition implements TransitionObserver.
func (f ObserverFuncs) OnTransition(from, to types.State) {
	if f.Transition != nil {
		f.Transition(from, to)
	}
}

var (
	_ Observer           = Observers(nil)
	_ TransitionObserver = Observers(nil)
	_ Observer           = ObserverFuncs{}
	_ TransitionObserver = ObserverFuncs{}
)
