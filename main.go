package main

import (
	"fmt"
	"log"
	"time"

	"github.com/policygrad/goppo/agent/ppo"
	"github.com/policygrad/goppo/environment/classiccontrol/cartpole"
	"github.com/policygrad/goppo/experiment"
	"github.com/policygrad/goppo/experiment/checkpointer"
	"github.com/policygrad/goppo/experiment/tracker"
)

func main() {
	var seed uint64 = 192382

	// Create the environment
	env, _ := cartpole.New(seed, 0.99, 500)

	// Create the learning algorithm
	config, err := ppo.NewDefaultConfig(2048)
	if err != nil {
		log.Fatalf("could not create config: %v", err)
	}

	agent, err := config.CreateAgent(env, seed)
	if err != nil {
		log.Fatalf("could not create agent: %v", err)
	}

	// Experiment
	var returns tracker.Tracker = tracker.NewReturn("./data.bin")
	// Timestep numbers restart at every episode, so the checkpoint
	// interval must fit inside an episode
	check := checkpointer.NewNStep(
		100,
		agent.(*ppo.PPO),
		checkpointer.FilenameEnumerator(0, "./checkpoint", ".bin"),
	)

	e := experiment.NewOnline(env, agent, 200_000,
		[]tracker.Tracker{returns}, []checkpointer.Checkpointer{check})

	start := time.Now()
	if err := e.Run(); err != nil {
		log.Fatalf("experiment failed: %v", err)
	}
	fmt.Println("Elapsed:", time.Since(start))
	if err := e.Save(); err != nil {
		log.Fatalf("could not save experiment data: %v", err)
	}

	data, err := tracker.LoadData("./data.bin")
	if err != nil {
		log.Fatalf("could not load experiment data: %v", err)
	}
	if len(data) > 10 {
		data = data[len(data)-10:]
	}
	fmt.Println(data)
}
