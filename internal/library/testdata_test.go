package library

const exampleAmbiance = `
music:
  volume: 20
  groups:
  - name: Scene 1 - Travel
    directory: "path/to/scene-1"
    track_lists:
    - name: Forest Music
      tracks:
      - forest-music-1.mp3
      - forest-music-2.mp3
    - name: Battle Music
      tracks:
      - https://www.youtube.com/watch?v=jIxas0a-KgM
      - https://www.youtube.com/watch?v=U6K-ZeqpO8k
  - name: Scene 2 - Arrival
    track_lists:
    - name: City Music
      tracks:
      - https://www.youtube.com/watch?v=_52K0E_gNY0
    - name: Tavern Music
      tracks:
      - https://www.youtube.com/watch?v=uaX-2RMzVvQ
sound:
  volume: 1
  directory: "path/to/sounds"
  groups:
    - name: Footsteps
      sounds:
      - name: Footsteps on Dry Leaves
        files:
        - file: footsteps-dry-leaves.wav
          end_at: 0:0:4
      - name: Footsteps on Wood Branches
        repeat_count: 0
        repeat_delay: 100-500
        files:
        - file: steps-on-a-wood-branch.ogg
          end_at: 0:0:5
`
