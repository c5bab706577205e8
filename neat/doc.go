// Package neat implements NeuroEvolution of Augmenting Topologies, the second
// brain family fellers can be trained with.
//
// NEAT evolves both the weights and the structure of a network. This
// implementation follows the original paper by Kenneth O. Stanley and Risto
// Miikkulainen and reads the configuration format of neat-python
// (https://github.com/CodeReclaimers/neat-python).
//
// Basic usage:
//
//	config, err := neat.LoadConfig("configs/flappy.ini")
//	if err != nil {
//		return err
//	}
//	config.Seed(42)
//
//	pop, err := neat.NewPopulation(config)
//	if err != nil {
//		return err
//	}
//
//	for i := 0; i < 100; i++ {
//		winner, err := pop.RunGeneration(ctx, evalGenomes)
//		if err != nil {
//			return err
//		}
//		if winner != nil {
//			break
//		}
//	}
//
// A Config and the genomes built from it share one random source and are not
// safe for concurrent mutation. Phenotypes built by package nn are read-only
// and may be activated concurrently.
package neat
